package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/chatvault/chatvault/internal/embed"
	"github.com/chatvault/chatvault/internal/notify"
	"github.com/chatvault/chatvault/internal/parser"
)

// Config holds the ingestion run configuration.
type Config struct {
	Dir         string // root directory of project log trees
	Project     string // substring match on project directory names
	SingleFile  string // process a single file only
	MinMessages int    // skip conversations below this message count
	DryRun      bool   // parse and embed counts only, no DB writes
	BuildIndex  bool   // build the vector index after ingestion
	IndexLists  int    // ivfflat cluster count for the index build
}

// Store is the slice of the storage layer the runner needs.
type Store interface {
	StoreConversation(ctx context.Context, meta parser.ConversationMetadata, msgs []parser.ParsedMessage, vectors [][]float32) (uuid.UUID, error)
	CreateVectorIndex(ctx context.Context, lists int) error
}

// Embedder is the slice of the embedding client the runner needs.
type Embedder interface {
	IsModelAvailable(ctx context.Context) (bool, error)
	EmbedMessages(ctx context.Context, contents []string) [][]float32
}

// Publisher receives ingest lifecycle events. May be nil.
type Publisher interface {
	Publish(subject string, data any) error
}

// Report aggregates the outcome of one ingestion run. Attempted vs. stored
// counts make partial-failure runs self-describing.
type Report struct {
	FilesFound             int      `json:"files_found"`
	ConversationsAttempted int      `json:"conversations_attempted"`
	ConversationsStored    int      `json:"conversations_stored"`
	MessagesStored         int      `json:"messages_stored"`
	MessagesEmbedded       int      `json:"messages_embedded"`
	FilesSkipped           int      `json:"files_skipped"`
	DryRun                 bool     `json:"dry_run"`
	Errors                 []string `json:"errors,omitempty"`
}

// Summary renders the run report for terminal output.
func (r *Report) Summary() string {
	var sb strings.Builder
	sb.WriteString("=== Ingestion Summary ===\n")
	fmt.Fprintf(&sb, "Files found: %d\n", r.FilesFound)
	fmt.Fprintf(&sb, "Conversations attempted: %d\n", r.ConversationsAttempted)
	fmt.Fprintf(&sb, "Conversations stored: %d\n", r.ConversationsStored)
	fmt.Fprintf(&sb, "Messages stored: %d\n", r.MessagesStored)
	fmt.Fprintf(&sb, "Messages embedded: %d\n", r.MessagesEmbedded)
	fmt.Fprintf(&sb, "Files skipped: %d\n", r.FilesSkipped)
	fmt.Fprintf(&sb, "Errors: %d\n", len(r.Errors))
	if r.DryRun {
		sb.WriteString("Mode: DRY RUN (no DB writes)\n")
	}
	return sb.String()
}

// Runner drives the per-conversation pipeline: parse, embed the substantial
// messages, store, always as one grouped unit per file.
type Runner struct {
	cfg      Config
	store    Store
	embedder Embedder
	notifier Publisher
	parser   *parser.Parser
	logger   *slog.Logger
}

func NewRunner(cfg Config, s Store, e Embedder, n Publisher, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IndexLists <= 0 {
		cfg.IndexLists = 100
	}
	return &Runner{
		cfg:      cfg,
		store:    s,
		embedder: e,
		notifier: n,
		parser:   parser.New(logger),
		logger:   logger,
	}
}

// Run executes a full ingestion pass. Per-file failures are logged and
// skipped; the run always completes and reports aggregate counts. An
// unavailable embedding model is fatal and surfaces before any work begins.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ok, err := r.embedder.IsModelAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("check embedding model: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("embedding model not available")
	}

	files, err := r.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	report := &Report{FilesFound: len(files), DryRun: r.cfg.DryRun}
	r.logger.Info("files discovered", "count", len(files), "dir", r.cfg.Dir, "project", r.cfg.Project)

	for _, path := range files {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		report.ConversationsAttempted++
		if err := r.ingestFile(ctx, path, report); err != nil {
			r.logger.Warn("skipping file", "path", path, "error", err)
			report.FilesSkipped++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
		}
	}

	if r.cfg.BuildIndex && !r.cfg.DryRun {
		if err := r.store.CreateVectorIndex(ctx, r.cfg.IndexLists); err != nil {
			r.logger.Error("vector index build failed", "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("build index: %v", err))
		}
	}

	if r.notifier != nil {
		if err := r.notifier.Publish(notify.SubjectRunCompleted, report); err != nil {
			r.logger.Warn("failed to publish run report", "error", err)
		}
	}

	r.logger.Info("ingestion complete",
		"conversations_attempted", report.ConversationsAttempted,
		"conversations_stored", report.ConversationsStored,
		"messages_stored", report.MessagesStored,
		"messages_embedded", report.MessagesEmbedded,
		"errors", len(report.Errors),
		"dry_run", report.DryRun,
	)
	return report, nil
}

func (r *Runner) ingestFile(ctx context.Context, path string, report *Report) error {
	meta, msgs, err := r.parser.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(msgs) < r.cfg.MinMessages {
		return fmt.Errorf("only %d messages, below minimum %d", len(msgs), r.cfg.MinMessages)
	}

	contents := make([]string, len(msgs))
	for i, m := range msgs {
		contents[i] = m.Content
	}

	vectors := r.embedder.EmbedMessages(ctx, contents)
	embedded := 0
	for i, v := range vectors {
		// A zero vector marks a per-item embedding failure; store it as
		// no-vector so it can't surface in similarity results.
		if v != nil && embed.IsZero(v) {
			vectors[i] = nil
			continue
		}
		if vectors[i] != nil {
			embedded++
		}
	}

	if r.cfg.DryRun {
		r.logger.Info("dry run, skipping store", "path", path, "messages", len(msgs), "embedded", embedded)
		report.ConversationsStored++
		report.MessagesStored += len(msgs)
		report.MessagesEmbedded += embedded
		return nil
	}

	id, err := r.store.StoreConversation(ctx, meta, msgs, vectors)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	report.ConversationsStored++
	report.MessagesStored += len(msgs)
	report.MessagesEmbedded += embedded

	if r.notifier != nil {
		event := notify.ConversationStored{
			ConversationID: id.String(),
			SessionID:      meta.SessionID,
			ProjectName:    meta.ProjectName,
			FilePath:       meta.FilePath,
			Messages:       len(msgs),
			Embedded:       embedded,
		}
		if err := r.notifier.Publish(notify.SubjectConversationStored, event); err != nil {
			r.logger.Warn("failed to publish conversation event", "error", err)
		}
	}

	return nil
}

// discoverFiles lists the JSONL files to ingest: a single file, or a walk of
// the configured directory, optionally narrowed to project directories whose
// name contains the project substring.
func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		if _, err := os.Stat(r.cfg.SingleFile); err != nil {
			return nil, fmt.Errorf("single file: %w", err)
		}
		return []string{r.cfg.SingleFile}, nil
	}

	info, err := os.Stat(r.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("stat dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", r.cfg.Dir)
	}

	var files []string
	err = filepath.Walk(r.cfg.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".jsonl") {
			return nil
		}
		if r.cfg.Project != "" && !strings.Contains(filepath.Base(filepath.Dir(path)), r.cfg.Project) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk dir: %w", err)
	}

	sort.Strings(files)
	return files, nil
}
