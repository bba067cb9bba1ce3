package diagram

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/rendis/stationflow/pkg/schema"
)

// Geometry in diagram units.
const (
	BlockWidth  = 6.0
	BlockHeight = 1.8
	BlockGap    = 2.0
	LeftMargin  = 2.0
	RowSpacing  = 3.0

	boundsMargin     = 1.0
	interRowCurve    = 0.15
	sludgeCurve      = 0.3
	sludgeLineCurve  = 0.15
	sludgeLabelDrop  = 0.8
	inboundRise      = 2.0
	outboundOffset   = 3.0
	destinationShift = 2.5
)

// emptyBounds is the canvas used when nothing is placed.
var emptyBounds = Bounds{MinX: 0, MaxX: 16, MinY: -16, MaxY: 2}

var filiereByName = map[string]Filiere{
	"Dégrillage":                         FilierePretreatment,
	"Dégrillage fin":                     FilierePretreatment,
	"Dessablage/Dégraissage":             FilierePretreatment,
	"Décanteur primaire":                 FilierePrimary,
	"Décanteur lamellaire":               FilierePrimary,
	"Bassins d'aération":                 FiliereSecondary,
	"Bassins à boues activées":           FiliereSecondary,
	"Bassins plantés de roseaux":         FiliereSecondary,
	"Lagune aérée":                       FiliereSecondary,
	"Clarificateur":                      FiliereSecondary,
	"Décanteur secondaire":               FiliereSecondary,
	"Filtration sur sable":               FiliereTertiary,
	"Désinfection UV":                    FiliereTertiary,
	"Épaississement des boues":           FiliereSludge,
	"Épaississement gravitaire":          FiliereSludge,
	"Déshydratation mécanique":           FiliereSludge,
	"Lits de séchage":                    FiliereSludge,
	"Séchage naturel sur lit de séchage": FiliereSludge,
	"Stockage":                           FiliereStorage,
	"Valorisation":                       FiliereRecovery,
	"Épandage":                           FiliereSpreading,
	"Mise en décharge":                   FiliereLandfill,
	"Incinération":                       FiliereIncineration,
	"Rejet":                              FiliereDischarge,
}

var sludgeByName = map[string]string{
	"Décanteur primaire":   SludgePrimary,
	"Décanteur secondaire": SludgeSecondary,
}

// outboundAnchors name the last water treatment step when no block was
// classified as secondary treatment.
var outboundAnchors = []string{"Décanteur secondaire", "Clarificateur", "Bassin aération"}

// Branch is a configured sludge arrow between two equipment units.
type Branch struct {
	Source      string
	Destination string
	Label       string
}

// Options carries everything besides the equipment list.
type Options struct {
	Title       string
	Destination schema.Destination
	Branches    []Branch
	SludgeLine  []string
	Logger      *slog.Logger
}

// Build runs the whole pipeline. It never fails: bad entries are dropped and
// an empty list yields an empty layout with default bounds.
func Build(items []any, opts Options) *Layout {
	records := Parse(items, opts.Logger)
	blocks := Position(Classify(records))

	l := &Layout{
		Title:       opts.Title,
		Destination: opts.Destination,
		Blocks:      blocks,
		Bounds:      ComputeBounds(blocks),
	}
	l.Labels = append(l.Labels, RowTitles(blocks)...)
	arrows, labels := Route(blocks, opts)
	l.Arrows = arrows
	l.Labels = append(l.Labels, labels...)
	return l
}

// Classify buckets records by filière using exact display names. Unknown
// names go to autre. Decanters get their sludge tag.
func Classify(records []Record) map[Filiere][]Record {
	out := make(map[Filiere][]Record)
	for _, r := range records {
		f, ok := filiereByName[r.Name]
		if !ok {
			f = FiliereOther
		}
		if tag, ok := sludgeByName[r.Name]; ok {
			r.SludgeTag = tag
		}
		out[f] = append(out[f], r)
	}
	return out
}

// Position places each populated filière on its own row, top to bottom in
// FiliereOrder, blocks left to right in arrival order.
func Position(classes map[Filiere][]Record) []Block {
	var blocks []Block
	y := 0.0
	for _, f := range FiliereOrder {
		recs := classes[f]
		if len(recs) == 0 {
			continue
		}
		x := LeftMargin
		for _, r := range recs {
			blocks = append(blocks, Block{
				Record:  r,
				Filiere: f,
				X:       x,
				Y:       y,
				Width:   BlockWidth,
				Height:  BlockHeight,
			})
			x += BlockWidth + BlockGap
		}
		y -= BlockHeight + RowSpacing
	}
	return blocks
}

// RowTitles puts the filière name left of each populated row.
func RowTitles(blocks []Block) []Label {
	var out []Label
	seen := make(map[Filiere]bool)
	for _, b := range blocks {
		if seen[b.Filiere] {
			continue
		}
		seen[b.Filiere] = true
		out = append(out, Label{
			Kind:  LabelRowTitle,
			Text:  FiliereTitle(b.Filiere),
			At:    Point{LeftMargin / 2, b.MidY()},
			Color: "#333333",
		})
	}
	return out
}

// FiliereTitle turns "traitement_primaire" into "Traitement Primaire".
func FiliereTitle(f Filiere) string {
	words := strings.Fields(strings.ReplaceAll(string(f), "_", " "))
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

// ComputeBounds returns the blocks' extent plus a margin.
func ComputeBounds(blocks []Block) Bounds {
	if len(blocks) == 0 {
		return emptyBounds
	}
	b := Bounds{MinX: blocks[0].X, MaxX: blocks[0].Right(), MinY: blocks[0].Y, MaxY: blocks[0].Top()}
	for _, blk := range blocks[1:] {
		b.MinX = min(b.MinX, blk.X)
		b.MaxX = max(b.MaxX, blk.Right())
		b.MinY = min(b.MinY, blk.Y)
		b.MaxY = max(b.MaxY, blk.Top())
	}
	b.MinX -= boundsMargin
	b.MaxX += boundsMargin
	b.MinY -= boundsMargin
	b.MaxY += boundsMargin
	return b
}

// Route computes arrows and the labels tied to them.
func Route(blocks []Block, opts Options) ([]Arrow, []Label) {
	var arrows []Arrow
	var labels []Label

	rows := make(map[Filiere][]Block)
	for _, b := range blocks {
		rows[b.Filiere] = append(rows[b.Filiere], b)
	}
	for _, f := range FiliereOrder {
		rows[f] = sortedByX(rows[f])
	}

	for _, f := range FiliereOrder {
		row := rows[f]
		if len(row) < 2 || strings.Contains(string(f), "boue") {
			continue
		}
		for i := 0; i+1 < len(row); i++ {
			arrows = append(arrows, Arrow{
				Kind:  ArrowWater,
				Start: row[i].RightMid(),
				End:   row[i+1].LeftMid(),
				From:  row[i].Name,
				To:    row[i+1].Name,
			})
		}
	}

	var prev []Block
	for _, f := range waterLine {
		row := rows[f]
		if len(row) == 0 {
			continue
		}
		if prev != nil {
			src, dst := prev[len(prev)-1], row[0]
			arrows = append(arrows, Arrow{
				Kind:      ArrowWater,
				Start:     src.RightMid(),
				End:       dst.LeftMid(),
				Curvature: interRowCurve,
				From:      src.Name,
				To:        dst.Name,
			})
		}
		prev = row
	}

	byName := make(map[string]Block, len(blocks))
	for _, b := range blocks {
		if _, dup := byName[b.Name]; !dup {
			byName[b.Name] = b
		}
	}

	for _, br := range opts.Branches {
		src, ok1 := byName[br.Source]
		dst, ok2 := byName[br.Destination]
		if !ok1 || !ok2 {
			continue
		}
		arrows = append(arrows, Arrow{
			Kind:      ArrowSludge,
			Start:     src.BottomCenter(),
			End:       dst.TopCenter(),
			Curvature: sludgeCurve,
			From:      src.Name,
			To:        dst.Name,
		})
		text := br.Label
		if text == "" {
			text = "Boues"
		}
		labels = append(labels, Label{
			Kind:  LabelSludge,
			Text:  text,
			At:    Point{src.MidX(), src.Y - sludgeLabelDrop},
			Color: SludgeColor,
		})
	}

	if len(opts.SludgeLine) > 1 {
		if src, ok := byName[opts.SludgeLine[0]]; ok {
			for _, name := range opts.SludgeLine[1:] {
				dst, ok := byName[name]
				if !ok {
					continue
				}
				arrows = append(arrows, Arrow{
					Kind:      ArrowSludgeLine,
					Start:     src.BottomCenter(),
					End:       dst.BottomCenter(),
					Curvature: sludgeLineCurve,
					From:      src.Name,
					To:        name,
				})
			}
		}
	}

	if len(blocks) == 0 {
		return arrows, labels
	}

	// blocks[0] is the leftmost block of the first populated row.
	first := blocks[0]
	in := Point{first.MidX(), first.Top() + inboundRise}
	arrows = append(arrows, Arrow{
		Kind:  ArrowInbound,
		Start: Point{in.X, in.Y - 0.5},
		End:   Point{in.X, first.Top() + 0.1},
		To:    first.Name,
	})
	labels = append(labels, Label{Kind: LabelInbound, Text: "Eaux usées", At: in, Color: "#000000"})

	last := outboundBlock(blocks)
	out := Point{last.Right() + outboundOffset, last.MidY()}
	arrows = append(arrows, Arrow{
		Kind:  ArrowOutbound,
		Start: Point{last.Right() + 0.1, out.Y},
		End:   Point{out.X - 1.5, out.Y},
		From:  last.Name,
	})
	labels = append(labels, Label{Kind: LabelOutbound, Text: "Eaux épurées", At: out, Color: "#0000FF"})

	if opts.Destination != "" {
		st := StyleFor(opts.Destination)
		labels = append(labels, Label{
			Kind:      LabelDestination,
			Text:      string(opts.Destination),
			Icon:      st.Icon,
			At:        Point{out.X + destinationShift, out.Y},
			Color:     st.Color,
			IconColor: st.IconColor,
			Italic:    st.Italic,
		})
	}
	return arrows, labels
}

// outboundBlock picks the last secondary-treatment block by x, or the
// rightmost block.
func outboundBlock(blocks []Block) Block {
	byX := sortedByX(blocks)
	for i := len(byX) - 1; i >= 0; i-- {
		if byX[i].Filiere == FiliereSecondary {
			return byX[i]
		}
	}
	for i := len(byX) - 1; i >= 0; i-- {
		for _, frag := range outboundAnchors {
			if strings.Contains(byX[i].Name, frag) {
				return byX[i]
			}
		}
	}
	return byX[len(byX)-1]
}

func sortedByX(blocks []Block) []Block {
	out := slices.Clone(blocks)
	slices.SortStableFunc(out, func(a, b Block) int {
		switch {
		case a.X < b.X:
			return -1
		case a.X > b.X:
			return 1
		}
		return 0
	})
	return out
}

// Title formats the diagram heading. updatedAt is a date_maj value; an
// unparsable value is shown as is.
func Title(stationName, processType, updatedAt string) string {
	head := "STEP " + stationName + " | Type de procédé : " + strings.ToUpper(strings.ReplaceAll(processType, "_", " "))
	if strings.TrimSpace(updatedAt) == "" {
		return head + "\nDate de mise à jour inconnue"
	}
	day, _, _ := strings.Cut(strings.TrimSpace(updatedAt), " ")
	t, err := time.Parse(schema.DateLayout, day)
	if err != nil {
		return head + "\nMise à jour du " + updatedAt
	}
	return head + "\nMise à jour du " + t.Format("02/01/2006")
}

// FileName is the default name of a saved diagram.
func FileName(stationName, ext string, now time.Time) string {
	name := strings.ReplaceAll(strings.ToLower(stationName), " ", "_")
	return "diagramme_" + name + "_" + now.Format("20060102_150405") + "." + strings.TrimPrefix(ext, ".")
}

// DisplayName puts an equipment name on one line.
func DisplayName(name string) string {
	for _, sep := range []string{" - ", " / ", " /", "/ ", " -", "- "} {
		name = strings.ReplaceAll(name, sep, " ")
	}
	return strings.Join(strings.Fields(name), " ")
}
