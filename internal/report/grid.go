package report

import (
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/talgya/brains/internal/agents"
	"github.com/talgya/brains/internal/engine"
	"github.com/talgya/brains/internal/learning"
	"github.com/talgya/brains/internal/world"
)

// Glyphs used by Grid and PolicyMap.
const (
	GlyphWater  = '~'
	GlyphTree   = 'T'
	GlyphGrass  = ','
	GlyphHouse  = '#'
	GlyphEmpty  = '.'
	GlyphHuman  = '@'
	GlyphCorpse = 'x'
)

// actionGlyphs is indexed by action column.
var actionGlyphs = [agents.NbActions]rune{
	agents.MoveDown:  'v',
	agents.MoveUp:    '^',
	agents.MoveRight: '>',
	agents.MoveLeft:  '<',
	agents.Drink:     'D',
	agents.Eat:       'E',
}

// ActionGlyph returns the PolicyMap glyph for an action column.
func ActionGlyph(a int) rune {
	if a < 0 || a >= len(actionGlyphs) {
		return '?'
	}
	return actionGlyphs[a]
}

// Grid draws env row by row (x down, y across) with humans on top. Living
// humans hide corpses on the same cell.
func Grid(env *world.Environment, humans []engine.HumanView, au aurora.Aurora) string {
	occupant := make(map[world.Position]bool, len(humans))
	for _, h := range humans {
		occupant[h.Position] = occupant[h.Position] || h.Alive
	}

	var b strings.Builder
	for x := 0; x < env.Height(); x++ {
		for y := 0; y < env.Width(); y++ {
			p := world.Pos(x, y)
			if alive, ok := occupant[p]; ok {
				if alive {
					b.WriteString(au.Red(string(GlyphHuman)).Bold().String())
				} else {
					b.WriteString(au.Gray(12, string(GlyphCorpse)).String())
				}
				continue
			}
			c, _ := env.CellAt(p)
			b.WriteString(cellGlyph(c, au))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func cellGlyph(c world.Cell, au aurora.Aurora) string {
	switch c.Kind {
	case world.CellWater:
		return au.Blue(string(GlyphWater)).String()
	case world.CellTree:
		return au.Green(string(GlyphTree)).String()
	case world.CellGrass:
		return au.Yellow(string(GlyphGrass)).String()
	case world.CellHouse:
		return au.Magenta(string(GlyphHouse)).String()
	default:
		return string(GlyphEmpty)
	}
}

// PolicyMap draws the greedy action at every cell for a human with the
// given thirst and hunger levels.
func PolicyMap(env *world.Environment, p *learning.Policy, thirst, hunger int, au aurora.Aurora) (string, error) {
	probe := agents.NewHuman(0, world.Pos(0, 0), env, p)
	probe.Thirst.Value = thirst
	probe.Hunger.Value = hunger

	var b strings.Builder
	for x := 0; x < env.Height(); x++ {
		for y := 0; y < env.Width(); y++ {
			probe.Position = world.Pos(x, y)
			a, err := probe.ChooseAction()
			if err != nil {
				return "", err
			}
			g := string(ActionGlyph(a))
			c, _ := env.CellAt(probe.Position)
			switch c.Kind {
			case world.CellWater:
				b.WriteString(au.BgBlue(g).String())
			case world.CellTree:
				b.WriteString(au.BgGreen(g).String())
			default:
				b.WriteString(g)
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
