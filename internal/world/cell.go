package world

// CellKind enumerates what occupies a grid cell.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellTree           // Food source
	CellWater          // Drinkable
	CellGrass
	CellHouse
)

// Cell is a single grid tile. Quality ranges from 0.0 (depleted) to 1.0
// (pristine) and is meaningless for CellEmpty.
type Cell struct {
	Kind    CellKind `json:"kind"`
	Quality float64  `json:"quality"`
}

// Constructors for each cell kind.
func Empty() Cell { return Cell{Kind: CellEmpty} }
func Tree(quality float64) Cell { return Cell{Kind: CellTree, Quality: quality} }
func Water(quality float64) Cell { return Cell{Kind: CellWater, Quality: quality} }
func Grass(quality float64) Cell { return Cell{Kind: CellGrass, Quality: quality} }
func House(quality float64) Cell { return Cell{Kind: CellHouse, Quality: quality} }

// CellKindName returns a human-readable name for a cell kind.
func CellKindName(k CellKind) string {
	switch k {
	case CellEmpty:
		return "Empty"
	case CellTree:
		return "Tree"
	case CellWater:
		return "Water"
	case CellGrass:
		return "Grass"
	case CellHouse:
		return "House"
	default:
		return "Unknown"
	}
}

func (k CellKind) String() string { return CellKindName(k) }
