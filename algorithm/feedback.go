package algorithm

import (
	"go.uber.org/zap"
)

// Feedback receives progress and warnings from a running algorithm.
type Feedback interface {
	SetProgressText(text string)
	// SetProgress takes a percentage in [0, 100].
	SetProgress(percent float64)
	PushWarning(text string)
}

// LogFeedback writes feedback to a logger.
type LogFeedback struct {
	Log *zap.SugaredLogger
}

func (f LogFeedback) SetProgressText(text string) {
	f.Log.Info(text)
}

func (f LogFeedback) SetProgress(percent float64) {
	f.Log.Debugw("progress", "percent", percent)
}

func (f LogFeedback) PushWarning(text string) {
	f.Log.Warn(text)
}

// Recorder keeps all feedback in memory.
type Recorder struct {
	Texts    []string
	Warnings []string
	Progress float64
}

func (r *Recorder) SetProgressText(text string) { r.Texts = append(r.Texts, text) }
func (r *Recorder) SetProgress(percent float64) { r.Progress = percent }
func (r *Recorder) PushWarning(text string)     { r.Warnings = append(r.Warnings, text) }
