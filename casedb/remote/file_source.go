package remote

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/casedb/types"
)

const lockRetryInterval = 20 * time.Millisecond

// FileSource replays case payloads from a YAML or JSON fixture file.
//
// The file holds either a list of payloads or a mapping with an "objects"
// list, mirroring the API's paged envelope. A DomainPlaceholder in the path
// is expanded, so one fixture per domain can live side by side. The file is
// read under a shared lock on "<path>.lock" on every fetch.
type FileSource struct {
	pathTemplate string
	locks        FileLockFactory
	logger       *slog.Logger
}

// NewFileSource creates a fixture-backed source
func NewFileSource(pathTemplate string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		pathTemplate: pathTemplate,
		locks:        &FlockFactory{},
		logger:       logger,
	}
}

// WithLockFactory replaces the lock factory, mainly for tests
func (s *FileSource) WithLockFactory(f FileLockFactory) *FileSource {
	s.locks = f
	return s
}

// Name implements Source
func (s *FileSource) Name() string { return "file" }

// Fetch implements Source. Criteria are applied locally as equality filters.
func (s *FileSource) Fetch(ctx context.Context, r Request) ([]types.Payload, error) {
	path := ExpandURL(s.pathTemplate, r.Domain)
	s.logger.Debug("reading case fixture", "path", path, "criteria", r.Criteria)

	lock := s.locks.New(path + ".lock")
	locked, err := lock.TryRLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to lock fixture %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock fixture %s", path)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	all, err := decodeFixture(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fixture %s: %w", path, err)
	}

	matched := make([]types.Payload, 0, len(all))
	for _, p := range all {
		if MatchesCriteria(p, r.Criteria) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

func decodeFixture(data []byte) ([]types.Payload, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var payloads []types.Payload
		if err := root.Decode(&payloads); err != nil {
			return nil, err
		}
		return payloads, nil
	case yaml.MappingNode:
		var envelope struct {
			Objects []types.Payload `yaml:"objects"`
		}
		if err := root.Decode(&envelope); err != nil {
			return nil, err
		}
		return envelope.Objects, nil
	default:
		return nil, fmt.Errorf("fixture root must be a list or a mapping")
	}
}

// MatchesCriteria applies the case API equality filtering on top-level fields and properties
func MatchesCriteria(p types.Payload, criteria map[string]string) bool {
	for k, want := range criteria {
		var got string
		switch k {
		case "case_id":
			if p.CaseID == nil {
				return false
			}
			got = *p.CaseID
		case "user_id", "owner_id":
			if p.UserID == nil {
				return false
			}
			got = *p.UserID
		case "closed":
			if p.Closed == nil {
				return false
			}
			got = strconv.FormatBool(*p.Closed)
		default:
			v, ok := p.Properties[k]
			if !ok || v == nil {
				return false
			}
			got = fmt.Sprint(v)
		}
		if got != want {
			return false
		}
	}
	return true
}
