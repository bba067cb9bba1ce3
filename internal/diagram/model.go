package diagram

import (
	"github.com/rendis/stationflow/pkg/schema"
)

// Filiere is one horizontal row of the diagram.
type Filiere string

const (
	FilierePretreatment Filiere = "pretraitement"
	FilierePrimary      Filiere = "traitement_primaire"
	FiliereSecondary    Filiere = "traitement_secondaire"
	FiliereTertiary     Filiere = "traitement_tertiaire"
	FiliereDischarge    Filiere = "rejet"
	FiliereSludge       Filiere = "traitement_boues"
	FiliereStorage      Filiere = "stockage"
	FiliereRecovery     Filiere = "valorisation"
	FiliereSpreading    Filiere = "epandage"
	FiliereLandfill     Filiere = "mise_en_decharge"
	FiliereIncineration Filiere = "incineration"
	FiliereOther        Filiere = "autre"
)

// FiliereOrder is the top-to-bottom row order.
var FiliereOrder = []Filiere{
	FilierePretreatment,
	FilierePrimary,
	FiliereSecondary,
	FiliereTertiary,
	FiliereDischarge,
	FiliereSludge,
	FiliereStorage,
	FiliereRecovery,
	FiliereSpreading,
	FiliereLandfill,
	FiliereIncineration,
	FiliereOther,
}

// waterLine is the sequence connected by inter-row arrows.
var waterLine = []Filiere{
	FilierePretreatment,
	FilierePrimary,
	FiliereSecondary,
	FiliereTertiary,
	FiliereDischarge,
}

// Sludge markers set by Classify on decanters.
const (
	SludgePrimary   = "boues_primaires"
	SludgeSecondary = "boues_secondaires"
)

// Record is one parsed equipment entry.
type Record struct {
	ID        int
	Name      string
	State     schema.OperatingState
	SludgeTag string
	Extra     map[string]any
}

// Point is a position in diagram units. y grows upward.
type Point struct {
	X, Y float64
}

// Block is a placed record. (X, Y) is the bottom-left corner.
type Block struct {
	Record
	Filiere Filiere
	X       float64
	Y       float64
	Width   float64
	Height  float64
}

func (b Block) Right() float64  { return b.X + b.Width }
func (b Block) Top() float64    { return b.Y + b.Height }
func (b Block) MidY() float64   { return b.Y + b.Height/2 }
func (b Block) MidX() float64   { return b.X + b.Width/2 }
func (b Block) LeftMid() Point  { return Point{b.X, b.MidY()} }
func (b Block) RightMid() Point { return Point{b.Right(), b.MidY()} }

func (b Block) TopCenter() Point    { return Point{b.MidX(), b.Top()} }
func (b Block) BottomCenter() Point { return Point{b.MidX(), b.Y} }

// ArrowKind tells renderers how to stroke an arrow.
type ArrowKind string

const (
	ArrowWater      ArrowKind = "water"
	ArrowSludge     ArrowKind = "sludge"
	ArrowSludgeLine ArrowKind = "sludge_line"
	ArrowInbound    ArrowKind = "inbound"
	ArrowOutbound   ArrowKind = "outbound"
)

// Arrow connects two points. Curvature is the arc radius factor, 0 for a
// straight line. From/To name the blocks when the arrow joins two blocks.
type Arrow struct {
	Kind      ArrowKind
	Start     Point
	End       Point
	Curvature float64
	From      string
	To        string
}

// LabelKind classifies free text placed on the diagram.
type LabelKind string

const (
	LabelRowTitle    LabelKind = "row_title"
	LabelInbound     LabelKind = "inbound"
	LabelOutbound    LabelKind = "outbound"
	LabelDestination LabelKind = "destination"
	LabelSludge      LabelKind = "sludge"
)

// Label is text anchored at a point.
type Label struct {
	Kind      LabelKind
	Text      string
	Icon      string
	At        Point
	Color     string
	IconColor string
	Italic    bool
}

// Bounds is the visible extent.
type Bounds struct {
	MinX, MaxX, MinY, MaxY float64
}

func (b Bounds) Width() float64  { return b.MaxX - b.MinX }
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Layout is everything a renderer needs.
type Layout struct {
	Title       string
	Destination schema.Destination
	Blocks      []Block
	Arrows      []Arrow
	Labels      []Label
	Bounds      Bounds
}

// Block returns the first block named name.
func (l *Layout) Block(name string) (Block, bool) {
	for _, b := range l.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return Block{}, false
}

// Rows returns the populated filières in row order with their blocks.
func (l *Layout) Rows() []Row {
	var rows []Row
	for _, f := range FiliereOrder {
		var blocks []Block
		for _, b := range l.Blocks {
			if b.Filiere == f {
				blocks = append(blocks, b)
			}
		}
		if len(blocks) > 0 {
			rows = append(rows, Row{Filiere: f, Blocks: blocks})
		}
	}
	return rows
}

// Row is one populated filière.
type Row struct {
	Filiere Filiere
	Blocks  []Block
}
