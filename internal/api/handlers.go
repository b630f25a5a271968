package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxelload/internal/vec"
	"github.com/annel0/voxelload/internal/world"
)

// PositionRequest - координаты ячейки в теле запроса
type PositionRequest struct {
	X *int `json:"x" binding:"required"`
	Y *int `json:"y" binding:"required"`
	Z *int `json:"z" binding:"required"`
}

// VoxelResponse - результат изменяющей операции
type VoxelResponse struct {
	Voxel  *world.VoxelSnapshot `json:"voxel,omitempty"`
	Report *world.Report        `json:"report"`
}

// StatsResponse - состояние конструкции и процесса
type StatsResponse struct {
	World   world.Stats  `json:"world"`
	Process ProcessStats `json:"process"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"source": s.engine.Source(),
		"uptime": s.metrics.Uptime(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика",
		Data: StatsResponse{
			World:   s.engine.Stats(),
			Process: s.metrics.Collect(),
		},
	})
}

func (s *Server) handleListVoxels(c *gin.Context) {
	snaps := s.engine.Snapshot()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: strconv.Itoa(len(snaps)) + " ячеек",
		Data:    snaps,
	})
}

func (s *Server) handleGetVoxel(c *gin.Context) {
	pos, ok := positionParam(c)
	if !ok {
		return
	}

	snap := s.snapshotAt(pos)
	if snap == nil {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Ячейка не найдена"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Ячейка", Data: snap})
}

func (s *Server) handleCreateVoxel(c *gin.Context) {
	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}
	pos := vec.Vec3{X: *req.X, Y: *req.Y, Z: *req.Z}

	v, rep, err := s.engine.CreateVoxel(c.Request.Context(), pos)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}

	s.logger.Info("🧱 %s создал ячейку %s, разрушено %d", operatorOf(c), pos, len(rep.Destroyed))
	snap := s.snapshotOf(v)
	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Ячейка создана",
		Data:    VoxelResponse{Voxel: &snap, Report: rep},
	})
}

func (s *Server) handleDestroyVoxel(c *gin.Context) {
	pos, ok := positionParam(c)
	if !ok {
		return
	}

	rep, err := s.engine.DestroyAt(c.Request.Context(), pos)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}

	s.logger.Info("💥 %s разрушил ячейку %s, каскад %d", operatorOf(c), pos, len(rep.Destroyed))
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Ячейка разрушена",
		Data:    VoxelResponse{Report: rep},
	})
}

func (s *Server) handleRecompute(c *gin.Context) {
	pos, ok := positionParam(c)
	if !ok {
		return
	}

	v := s.engine.VoxelAt(pos)
	if v == nil {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Ячейка не найдена"})
		return
	}

	rep := s.engine.RecomputePhysics(c.Request.Context(), v)
	snap := s.snapshotOf(v)
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Путь опоры пересчитан",
		Data:    VoxelResponse{Voxel: &snap, Report: rep},
	})
}

func (s *Server) handleDigest(c *gin.Context) {
	st := s.engine.Stats()
	c.JSON(http.StatusOK, gin.H{
		"digest": strconv.FormatUint(st.Digest, 16),
		"live":   st.Live,
	})
}

func (s *Server) handleConsistency(c *gin.Context) {
	err := s.engine.CheckConsistency()
	if err == nil {
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Инварианты соблюдены"})
		return
	}

	var ce *world.ConsistencyError
	if errors.As(err, &ce) {
		s.logger.Error("❌ Нарушены инварианты: %v", err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: err.Error(),
			Data:    ce.Violations,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
}

func (s *Server) handleSaveSnapshot(c *gin.Context) {
	name := c.Param("name")

	var positions []vec.Vec3
	s.engine.Inspect(func(reg *world.Registry) {
		positions = reg.Positions()
	})

	if err := s.snapshots.SaveSnapshot(c.Request.Context(), name, positions); err != nil {
		s.logger.Error("❌ Не удалось сохранить снимок %q: %v", name, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка хранилища"})
		return
	}

	s.logger.Info("💾 Снимок %q сохранён: %d ячеек", name, len(positions))
	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Снимок сохранён",
		Data:    gin.H{"name": name, "count": len(positions)},
	})
}

func (s *Server) handleLoadSnapshot(c *gin.Context) {
	name := c.Param("name")

	positions, found, err := s.snapshots.LoadSnapshot(c.Request.Context(), name)
	if err != nil {
		s.logger.Error("❌ Не удалось прочитать снимок %q: %v", name, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка хранилища"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Снимок не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Снимок", Data: positions})
}

// writeEngineError переводит ошибки движка в HTTP статусы
func (s *Server) writeEngineError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, world.ErrCellOccupied):
		status = http.StatusConflict
	case errors.Is(err, world.ErrOutOfBounds):
		status = http.StatusBadRequest
	case errors.Is(err, world.ErrNotFound):
		status = http.StatusNotFound
	default:
		s.logger.Error("❌ Ошибка движка: %v", err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}

// snapshotOf копирует состояние ячейки под блокировкой движка
func (s *Server) snapshotOf(v *world.Voxel) world.VoxelSnapshot {
	var snap world.VoxelSnapshot
	s.engine.Inspect(func(*world.Registry) {
		snap = v.Snapshot()
	})
	return snap
}

func (s *Server) snapshotAt(pos vec.Vec3) *world.VoxelSnapshot {
	var snap *world.VoxelSnapshot
	s.engine.Inspect(func(reg *world.Registry) {
		if v := reg.Get(pos); v != nil {
			cp := v.Snapshot()
			snap = &cp
		}
	})
	return snap
}

func positionParam(c *gin.Context) (vec.Vec3, bool) {
	var coords [3]int
	for i, name := range []string{"x", "y", "z"} {
		n, err := strconv.Atoi(c.Param(name))
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{
				Success: false,
				Message: "Неверная координата " + name,
			})
			return vec.Vec3{}, false
		}
		coords[i] = n
	}
	return vec.Vec3{X: coords[0], Y: coords[1], Z: coords[2]}, true
}
