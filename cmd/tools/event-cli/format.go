package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/annel0/tileworld/internal/eventbus"
)

// formatEvent строка для вывода события; известные полезные нагрузки раскрываются
func formatEvent(ev *eventbus.Envelope) string {
	head := fmt.Sprintf("[%s] %s/%s", ev.Timestamp.UTC().Format(timeFormat), ev.Source, ev.EventType)

	switch ev.EventType {
	case eventbus.EventBlockChanged:
		var p eventbus.BlockChanged
		if err := ev.Decode(&p); err == nil {
			s := fmt.Sprintf("%s (%d,%d) -> %s", head, p.X, p.Y, p.Type)
			if p.Player != "" {
				s += " by " + p.Player
			}
			return s
		}
	case eventbus.EventPlayerJoined, eventbus.EventPlayerLeft:
		var p eventbus.PlayerEvent
		if err := ev.Decode(&p); err == nil {
			return fmt.Sprintf("%s #%d %s", head, p.ID, p.Name)
		}
	}
	return fmt.Sprintf("%s %s", head, string(ev.Payload))
}

func matchTypes(ev *eventbus.Envelope, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if strings.EqualFold(t, ev.EventType) {
			return true
		}
	}
	return false
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m", "2d" или абсолютное RFC3339
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}
	if days, ok := strings.CutSuffix(since, "d"); ok {
		var n int
		if _, err := fmt.Sscanf(days, "%d", &n); err == nil && n >= 0 {
			return from.Add(-time.Duration(n) * 24 * time.Hour), nil
		}
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		return time.Parse(time.RFC3339, since)
	}
	return from.Add(-duration), nil
}
