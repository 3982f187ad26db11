// Package taskstore keeps task definitions as YAML (or JSON) files in a
// directory. Each file holds one task.
package taskstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/copyleftdev/taskpilot/internal/taskstypes"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidName  = errors.New("task name may only contain letters, digits, '.', '_' and '-'")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type Store struct {
	dir    string
	logger *zap.Logger
}

func New(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger.Named("taskstore")}
}

func (s *Store) Dir() string {
	return s.dir
}

// Load reads a single task file. The format follows the extension: .json is
// decoded as JSON, anything else as YAML.
func Load(path string) (*taskstypes.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	task := &taskstypes.Task{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, task)
	} else {
		err = yaml.Unmarshal(data, task)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	if task.Name == "" {
		task.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task in %s: %w", filepath.Base(path), err)
	}
	return task, nil
}

// List loads every task file directly under the store directory, sorted by
// name. Files that fail to load are logged and skipped. A missing directory
// yields an empty list.
func (s *Store) List() ([]*taskstypes.Task, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task directory: %w", err)
	}

	var tasks []*taskstypes.Task
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !isTaskFile(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		task, err := Load(path)
		if err != nil {
			s.logger.Warn("Skipping task file", zap.String("file", path), zap.Error(err))
			continue
		}
		if prev, dup := seen[task.Name]; dup {
			s.logger.Warn("Duplicate task name, keeping first", zap.String("task", task.Name), zap.String("kept", prev), zap.String("skipped", path))
			continue
		}
		seen[task.Name] = path
		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })
	return tasks, nil
}

// Get returns the task with the given name.
func (s *Store) Get(name string) (*taskstypes.Task, error) {
	tasks, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
}

// Save validates task and writes it to <dir>/<name>.yaml, replacing any
// existing file of that name.
func (s *Store) Save(task *taskstypes.Task) (string, error) {
	if !validName.MatchString(task.Name) {
		return "", ErrInvalidName
	}
	if err := task.Validate(); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("encode task: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create task directory: %w", err)
	}

	path := filepath.Join(s.dir, task.Name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write task file: %w", err)
	}
	s.logger.Info("Task saved", zap.String("task", task.Name), zap.String("file", path))
	return path, nil
}

func isTaskFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
