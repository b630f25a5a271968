package scenario

import (
	"context"

	"github.com/annel0/voxelload/internal/vec"
	"github.com/annel0/voxelload/internal/world"
)

// Builder - часть движка, нужная для прогона сценария
type Builder interface {
	CreateVoxel(ctx context.Context, pos vec.Vec3) (*world.Voxel, *world.Report, error)
	RecomputePhysics(ctx context.Context, v *world.Voxel) *world.Report
	VoxelAt(pos vec.Vec3) *world.Voxel
}

// Result - итог прогона сценария
type Result struct {
	Scenario   string         `json:"scenario"`
	Created    int            `json:"created"`
	Rejected   int            `json:"rejected"`  // позиция занята или вне мира
	Collapsed  int            `json:"collapsed"` // ячейка разрушена в операции создания
	Recomputed int            `json:"recomputed"`
	Destroyed  int            `json:"destroyed"`
	ByReason   map[string]int `json:"by_reason"`
}

func (r *Result) absorb(rep *world.Report) {
	if rep == nil {
		return
	}
	for _, d := range rep.Destroyed {
		r.Destroyed++
		r.ByReason[string(d.Reason)]++
	}
}
