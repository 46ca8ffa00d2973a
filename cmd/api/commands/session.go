package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/taskmaster/tracker/internal/domain/entities"
)

// session is what the client remembers between invocations
type session struct {
	BaseURL      string `yaml:"baseURL"`
	Email        string `yaml:"email"`
	Token        string `yaml:"token"`
	RefreshToken string `yaml:"refreshToken"`
}

func defaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tracker", "session.yaml"), nil
}

// loadSession returns an empty session when the file does not exist yet
func loadSession(path string) (*session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return &s, nil
}

func (s *session) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// The last known task list is kept next to the session in the API's own JSON
// form so the dashboard can fall back to it offline.
func tasksPath(sessionPath string) string {
	return filepath.Join(filepath.Dir(sessionPath), "tasks.json")
}

func loadTasks(sessionPath string) []*entities.Task {
	data, err := os.ReadFile(tasksPath(sessionPath))
	if err != nil {
		return nil
	}
	var tasks []*entities.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil
	}
	return tasks
}

func saveTasks(sessionPath string, tasks []*entities.Task) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(sessionPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tasksPath(sessionPath), data, 0o600)
}
