package formats

import "logscope/internal/model"

// Builtins returns the immutable formats available at boot.
func Builtins() []model.LogFormatDefinition {
	return []model.LogFormatDefinition{
		{
			ID:      "spring-boot",
			Name:    "Spring Boot",
			Pattern: `^(\d{4}-\d{2}-\d{2}\s\d{2}:\d{2}:\d{2}\.\d{3})\s+(\w+)\s+(\d+)\s+---\s+\[(.*?)\]\s+(.*?)\s*:\s+(.*)$`,
			Groups:  model.GroupRoles{Timestamp: 1, Level: 2, TraceID: 4, Logger: 5, Message: 6},
			Sample:  "2023-04-08 16:40:01.279 INFO 17017 --- [thread-1] org.example.Class: This is a sample log message",
			Builtin: true,
		},
		{
			ID:      "standard-log",
			Name:    "Standard",
			Pattern: `^(\d{4}-\d{2}-\d{2}\s\d{2}:\d{2}:\d{2}(?:\.\d{3})?)\s+\[(\w+)\]\s+(.*)$`,
			Groups:  model.GroupRoles{Timestamp: 1, Level: 2, Message: 3},
			Sample:  "2023-04-08 16:40:01.279 [INFO] This is a sample log message",
			Builtin: true,
		},
		{
			ID:      "python-logging",
			Name:    "Python logging",
			Pattern: `^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3}) - (\S+) - (\w+) - (.*)$`,
			Groups:  model.GroupRoles{Timestamp: 1, Logger: 2, Level: 3, Message: 4},
			Sample:  "2023-04-08 16:40:01,279 - app.worker - WARNING - queue is almost full",
			Builtin: true,
		},
		{
			ID:      "json",
			Name:    "JSON lines",
			Kind:    model.FormatKindJSON,
			Pattern: `^\{.*\}$`,
			Sample:  `{"timestamp":"2023-04-08T16:40:01.279Z","level":"info","logger":"app.api","message":"This is a sample log message"}`,
			Builtin: true,
		},
	}
}
