package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// RenderImage renders a Layout as PNG bytes.
func RenderImage(ctx context.Context, l *Layout) ([]byte, error) {
	return render(ctx, l, graphviz.PNG)
}

// RenderSVG renders a Layout as an SVG document.
func RenderSVG(ctx context.Context, l *Layout) ([]byte, error) {
	return render(ctx, l, graphviz.SVG)
}

// render pins every block and label at its computed position and lets neato
// draw the edges only.
func render(ctx context.Context, l *Layout, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.NEATO)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	if l.Title != "" {
		graph.SetLabel(l.Title)
		graph.SetLabelLocation(cgraph.TopLocation)
	}
	graph.SetSplines("curved")
	graph.SetOverlap(true)
	graph.SetPad(0.3)

	gvNodes := make(map[string]*cgraph.Node, len(l.Blocks))
	for i, blk := range l.Blocks {
		if _, dup := gvNodes[blk.Name]; dup {
			continue
		}
		n, nErr := graph.CreateNodeByName(fmt.Sprintf("n%d", i+1))
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", blk.Name, nErr)
		}
		n.SetLabel(DisplayName(blk.Name))
		n.SetShape(cgraph.BoxShape)
		_ = n.SafeSet("style", "filled,rounded", "")
		n.SetFillColor(StateColor(blk.State))
		n.SetWidth(blk.Width)
		n.SetHeight(blk.Height)
		n.SetFixedSize(true)
		n.SetFontSize(10)
		n.SetPos(blk.MidX(), blk.MidY())
		n.SetPin(true)
		gvNodes[blk.Name] = n
	}

	for i, lbl := range l.Labels {
		n, nErr := graph.CreateNodeByName(fmt.Sprintf("l%d", i+1))
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create label %q: %w", lbl.Text, nErr)
		}
		text := lbl.Text
		if lbl.Icon != "" {
			text = lbl.Icon + " " + text
		}
		n.SetLabel(text)
		n.SetShape(cgraph.PlainTextShape)
		_ = n.SafeSet("fontcolor", lbl.Color, "")
		n.SetPos(lbl.At.X, lbl.At.Y)
		n.SetPin(true)
		gvNodes[fmt.Sprintf("\x00%s", lbl.Kind)] = n
	}

	for _, a := range l.Arrows {
		from, to := gvNodes[a.From], gvNodes[a.To]
		switch a.Kind {
		case ArrowInbound:
			from = gvNodes["\x00"+string(LabelInbound)]
		case ArrowOutbound:
			to = gvNodes["\x00"+string(LabelOutbound)]
		}
		if from == nil || to == nil {
			continue
		}
		e, eErr := graph.CreateEdgeByName("", from, to)
		if eErr != nil {
			continue
		}
		applyArrowStyle(e, a.Kind)
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, format, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// applyArrowStyle strokes water lines solid blue and sludge lines dashed brown.
func applyArrowStyle(e *cgraph.Edge, kind ArrowKind) {
	e.SetPenWidth(1.5)
	switch kind {
	case ArrowSludge, ArrowSludgeLine:
		e.SetColor(SludgeColor)
		e.SetStyle(cgraph.DashedEdgeStyle)
	case ArrowInbound:
		e.SetColor("black")
	default:
		e.SetColor(WaterColor)
		e.SetStyle(cgraph.SolidEdgeStyle)
	}
}
