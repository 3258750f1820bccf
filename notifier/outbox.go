package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/efeurhobobullish/vcf-generator/contract"
	"github.com/jonboulle/clockwork"
)

const messagesFile = "messages.log"

// OutboxNotifier writes deliveries to a local directory instead of a remote
// chat. Used when no bot token is configured.
type OutboxNotifier struct {
	log   *slog.Logger
	dir   string
	clock clockwork.Clock
	mu    sync.Mutex
}

func NewOutboxNotifier(log *slog.Logger, dir string, clk clockwork.Clock) (*OutboxNotifier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir outbox dir: %w", err)
	}
	return &OutboxNotifier{log: log, dir: dir, clock: clk}, nil
}

func (o *OutboxNotifier) SendText(ctx context.Context, destination string, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(o.dir, messagesFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "[%s] to=%s\n%s\n\n", o.clock.Now().Format(time.RFC3339), destination, message)
	return err
}

func (o *OutboxNotifier) SendDocument(ctx context.Context, destination string, document contract.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(o.dir, filepath.Base(document.FileName))
	if err := os.WriteFile(path, document.Content, 0o644); err != nil {
		return err
	}
	o.log.Info("Document written to outbox",
		"destination", destination,
		"path", path,
		"caption", document.Caption,
		"bytes", len(document.Content))
	return nil
}
