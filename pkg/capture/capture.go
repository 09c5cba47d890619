// Package capture writes screenshots of a session to disk as named
// checkpoints for human review.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ashparshp/hairone/pkg/browser"
	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/logging"
	"github.com/ashparshp/hairone/pkg/session"
)

//go:generate mockgen -package=capture -destination=mock_screenshotter_test.go github.com/ashparshp/hairone/pkg/capture Screenshotter

// Screenshotter is the part of a browser session capture needs.
type Screenshotter interface {
	ID() string
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

// Artifact describes one file written by a Capturer.
type Artifact struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	MIME      string    `json:"mime"`
	Bytes     int       `json:"bytes"`
	FullPage  bool      `json:"full_page"`
	SessionID string    `json:"session_id"`
	Time      time.Time `json:"time"`
}

// Capturer writes checkpoints under <root>/<scenario-slug>/.
type Capturer struct {
	root     string
	scenario string
	fullPage bool

	mu        sync.Mutex
	seq       int
	artifacts []Artifact

	logger  *logging.Logger
	metrics *browser.Metrics
}

// Option customizes a Capturer.
type Option func(*Capturer)

// WithFullPage makes checkpoints capture the whole document by default.
func WithFullPage(full bool) Option {
	return func(c *Capturer) { c.fullPage = full }
}

// WithLogger logs every artifact written.
func WithLogger(l *logging.Logger) Option {
	return func(c *Capturer) { c.logger = l }
}

// WithMetrics counts checkpoints.
func WithMetrics(m *browser.Metrics) Option {
	return func(c *Capturer) { c.metrics = m }
}

// New creates a Capturer for one scenario.
func New(root, scenario string, opts ...Option) *Capturer {
	c := &Capturer{root: root, scenario: session.Slug(scenario, "scenario")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the directory checkpoints are written to.
func (c *Capturer) Dir() string {
	return filepath.Join(c.root, c.scenario)
}

// Capture screenshots sess into path, creating parent directories. It fails
// only when the session is gone or the file cannot be written.
func (c *Capturer) Capture(ctx context.Context, sess Screenshotter, path string, fullPage bool) (Artifact, error) {
	return c.capture(ctx, sess, filepath.Base(path), path, fullPage)
}

func (c *Capturer) capture(ctx context.Context, sess Screenshotter, name, path string, fullPage bool) (Artifact, error) {
	data, err := sess.Screenshot(ctx, fullPage)
	if err != nil {
		if browser.IsSessionClosed(err) {
			return Artifact{}, err
		}
		return Artifact{}, herrors.Wrap(err, herrors.ErrCodeArtifactWrite, "screenshot failed").
			WithContext("path", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Artifact{}, herrors.Wrap(err, herrors.ErrCodeArtifactWrite, "creating artifact directory").
			WithContext("path", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Artifact{}, herrors.Wrap(err, herrors.ErrCodeArtifactWrite, "writing artifact").
			WithContext("path", path)
	}

	art := Artifact{
		Name:      name,
		Path:      path,
		MIME:      mimetype.Detect(data).String(),
		Bytes:     len(data),
		FullPage:  fullPage,
		SessionID: sess.ID(),
		Time:      time.Now(),
	}
	c.mu.Lock()
	c.artifacts = append(c.artifacts, art)
	c.mu.Unlock()

	c.metrics.RecordCheckpoint(sess.ID(), path)
	c.logger.Info(logging.CategoryArtifact, "checkpoint", path, map[string]any{
		"mime":      art.MIME,
		"bytes":     art.Bytes,
		"full_page": fullPage,
	})
	return art, nil
}

// Checkpoint captures into the next numbered file, <NN>-<name>.png.
func (c *Capturer) Checkpoint(ctx context.Context, sess Screenshotter, name string) (Artifact, error) {
	return c.CheckpointWith(ctx, sess, name, c.fullPage)
}

// CheckpointWith is Checkpoint with an explicit full-page setting.
func (c *Capturer) CheckpointWith(ctx context.Context, sess Screenshotter, name string, fullPage bool) (Artifact, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	file := fmt.Sprintf("%02d-%s.png", seq, session.Slug(name, "checkpoint"))
	return c.capture(ctx, sess, name, filepath.Join(c.Dir(), file), fullPage)
}

// Artifacts returns everything written so far, in order.
func (c *Capturer) Artifacts() []Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Artifact(nil), c.artifacts...)
}
