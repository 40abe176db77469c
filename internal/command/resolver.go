package command

import (
	"strings"

	"github.com/duet-sh/duet/internal/slot"
)

// FrameworkCustom marks a slot whose start command is supplied verbatim by
// the user instead of a framework default.
const FrameworkCustom = "custom"

// Slot-kind generic fallbacks for frameworks with no table entry.
const (
	defaultFrontendCommand = "npm start"
	defaultBackendCommand  = "npm run serve"
)

var frontendCommands = map[string]string{
	"react":   "npm start",
	"vue":     "npm run serve",
	"angular": "ng serve",
	"svelte":  "npm run dev",
	"next":    "npm run dev",
	"nuxt":    "npm run dev",
	"vite":    "npm run dev",
	"astro":   "npm run dev",
	"flutter": "flutter run -d chrome",
}

var backendCommands = map[string]string{
	"node":    "npm start",
	"express": "npm start",
	"nest":    "npm run start:dev",
	"django":  "python manage.py runserver",
	"flask":   "flask run",
	"fastapi": "uvicorn main:app --reload",
	"spring":  "./mvnw spring-boot:run",
	"rails":   "bin/rails server",
	"laravel": "php artisan serve",
	"go":      "go run .",
	"dotnet":  "dotnet watch run",
}

// Resolve maps a framework identifier and slot kind to the shell command
// that starts the service. A "custom" framework with a non-empty custom
// command returns that command verbatim; unknown frameworks fall back to the
// slot-kind generic default. Always returns a non-empty string.
func Resolve(framework string, kind slot.Kind, custom string) string {
	framework = strings.ToLower(strings.TrimSpace(framework))
	if framework == FrameworkCustom {
		if c := strings.TrimSpace(custom); c != "" {
			return c
		}
	}
	table := frontendCommands
	fallback := defaultFrontendCommand
	if kind == slot.Backend {
		table = backendCommands
		fallback = defaultBackendCommand
	}
	if cmd, ok := table[framework]; ok {
		return cmd
	}
	return fallback
}
