package comm

import "github.com/hetmem/hetmem/core"

func init() {
	core.NewProcessGroupFunc = func(world int) []core.Collective {
		g := NewProcessGroup(world)
		ranks := make([]core.Collective, world)
		for r := 0; r < world; r++ {
			ranks[r] = g.Rank(r)
		}
		return ranks
	}
}
