package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"tg-topic-digest/internal/domain"
)

type topicsFile struct {
	Topics []topicEntry `yaml:"topics"`
}

type topicEntry struct {
	Name        string  `yaml:"name"`
	Sources     []int64 `yaml:"sources"`
	Destination int64   `yaml:"destination"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars заменяет ${VAR} значениями переменных окружения; неизвестные остаются как есть.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// LoadTopics читает YAML со списком тем.
func LoadTopics(path string) ([]domain.Topic, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла тем: %w", err)
	}
	return ParseTopics(raw)
}

// ParseTopics разбирает список тем, сохраняя порядок из файла.
func ParseTopics(raw []byte) ([]domain.Topic, error) {
	var file topicsFile
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(raw))), &file); err != nil {
		return nil, fmt.Errorf("разбор файла тем: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Topics))
	topics := make([]domain.Topic, 0, len(file.Topics))
	for i, entry := range file.Topics {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("тема #%d: пустое имя", i+1)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("тема %q указана дважды", name)
		}
		seen[name] = struct{}{}
		topics = append(topics, domain.Topic{
			Name:        name,
			Sources:     append([]int64(nil), entry.Sources...),
			Destination: entry.Destination,
		})
	}
	return topics, nil
}

// SelectTopics оставляет темы из names в исходном порядке. Пустой names возвращает все темы.
func SelectTopics(topics []domain.Topic, names []string) ([]domain.Topic, error) {
	if len(names) == 0 {
		return topics, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = false
	}
	var out []domain.Topic
	for _, t := range topics {
		if _, ok := wanted[t.Name]; ok {
			wanted[t.Name] = true
			out = append(out, t)
		}
	}
	for name, found := range wanted {
		if !found {
			return nil, fmt.Errorf("тема %q не найдена", name)
		}
	}
	return out, nil
}
