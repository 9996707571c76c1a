package scorer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/tty"
)

// Transcribe returns the transcript of unitID.
//
// With a command configured, the transcript is the command's stdout. Without
// one, the sidecar text file next to the media (clip.mp4 -> clip.txt) is read;
// a missing sidecar yields an empty transcript.
func (s *Scorer) Transcribe(ctx context.Context, stage config.Stage, unitID string) (string, error) {
	if len(stage.Command) == 0 {
		return s.readSidecar(stage, unitID)
	}
	out, err := s.invoke(ctx, stage, unitID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(tty.StripANSI(string(out.Stdout))), nil
}

// SidecarPath returns the transcript sidecar path of unitID.
func (s *Scorer) SidecarPath(unitID string) string {
	p := s.UnitPath(unitID)
	return strings.TrimSuffix(p, filepath.Ext(p)) + ".txt"
}

func (s *Scorer) readSidecar(stage config.Stage, unitID string) (string, error) {
	path := s.SidecarPath(unitID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.WrapWithDetails(errors.EScorerFailed, "failed to read transcript sidecar", err,
			details(stage, unitID, map[string]string{"path": path}))
	}
	return strings.TrimSpace(string(data)), nil
}
