package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/hyperifyio/goweaver/internal/events"
)

// Replay reads a completed run's event journal and writes it to out as JSON
// lines. The file under runDir is authoritative; when it is gone and a redis
// client is given, the short-lived mirror is read instead. Replay never
// writes anywhere, so replaying a run any number of times leaves its
// artifacts and mirrors untouched.
func Replay(ctx context.Context, runDir string, client redis.UniversalClient, out io.Writer) (int, error) {
	evs, err := events.ReadFile(filepath.Join(runDir, "events.jsonl"))
	if err != nil {
		if client == nil {
			return 0, err
		}
		runID := strings.TrimPrefix(filepath.Base(runDir), "run_")
		evs, err = events.NewRedisRecorder(client, runID).Events(ctx)
		if err != nil {
			return 0, err
		}
	}
	if len(evs) == 0 {
		return 0, fmt.Errorf("runner: no events for %s", runDir)
	}
	if out != nil {
		enc := json.NewEncoder(out)
		for _, ev := range evs {
			if err := enc.Encode(ev); err != nil {
				return 0, err
			}
		}
	}
	return len(evs), nil
}
