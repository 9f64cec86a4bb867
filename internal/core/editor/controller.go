package editor

import "github.com/zeusync/scenery/internal/core/ecs"

var _ ecs.Controller = (*Controller)(nil)

// Controller flushes a session's pending edits after every update.
type Controller struct {
	session *Session
}

func NewController(s *Session) *Controller {
	return &Controller{session: s}
}

func (c *Controller) Name() string { return "editor" }

func (c *Controller) Update(_ *ecs.Scene, _ float32) {}

func (c *Controller) PostUpdate(_ *ecs.Scene, dt float32) {
	c.session.Flush(dt)
}
