package deps

import (
	"os"
	"path/filepath"
	"strings"
)

// markers lists framework-conventional directories whose presence means
// dependencies are installed.
var markers = map[string][]string{
	"react":   {"node_modules"},
	"vue":     {"node_modules"},
	"angular": {"node_modules"},
	"svelte":  {"node_modules"},
	"next":    {"node_modules"},
	"nuxt":    {"node_modules"},
	"vite":    {"node_modules"},
	"astro":   {"node_modules"},
	"node":    {"node_modules"},
	"express": {"node_modules"},
	"nest":    {"node_modules"},
	"django":  {".venv", "venv", "env"},
	"flask":   {".venv", "venv", "env"},
	"fastapi": {".venv", "venv", "env"},
	"rails":   {"vendor/bundle", ".bundle"},
	"laravel": {"vendor"},
	"spring":  {"target", "build"},
	"go":      {"vendor"},
	"dotnet":  {"bin", "obj"},
	"flutter": {".dart_tool"},
}

// manifests lists files that imply dependencies are required even when no
// marker directory exists yet.
var manifests = map[string][]string{
	"react":   {"package.json"},
	"vue":     {"package.json"},
	"angular": {"package.json"},
	"svelte":  {"package.json"},
	"next":    {"package.json"},
	"nuxt":    {"package.json"},
	"vite":    {"package.json"},
	"astro":   {"package.json"},
	"node":    {"package.json"},
	"express": {"package.json"},
	"nest":    {"package.json"},
	"django":  {"requirements.txt", "Pipfile", "pyproject.toml"},
	"flask":   {"requirements.txt", "Pipfile", "pyproject.toml"},
	"fastapi": {"requirements.txt", "Pipfile", "pyproject.toml"},
	"rails":   {"Gemfile"},
	"laravel": {"composer.json"},
	"spring":  {"pom.xml", "build.gradle"},
	"flutter": {"pubspec.yaml"},
}

var installCommands = map[string]string{
	"react":   "npm install",
	"vue":     "npm install",
	"angular": "npm install",
	"svelte":  "npm install",
	"next":    "npm install",
	"nuxt":    "npm install",
	"vite":    "npm install",
	"astro":   "npm install",
	"node":    "npm install",
	"express": "npm install",
	"nest":    "npm install",
	"django":  "pip install -r requirements.txt",
	"flask":   "pip install -r requirements.txt",
	"fastapi": "pip install -r requirements.txt",
	"rails":   "bundle install",
	"laravel": "composer install",
	"spring":  "./mvnw dependency:resolve",
	"go":      "go mod download",
	"dotnet":  "dotnet restore",
	"flutter": "flutter pub get",
}

// HasDependencies reports whether dir shows evidence of installed
// dependencies for framework. A missing working directory counts as
// satisfied: there is nothing to check, and the spawn itself will surface
// the real problem. A manifest with no marker counts as missing.
func HasDependencies(dir, framework string) bool {
	framework = strings.ToLower(strings.TrimSpace(framework))
	if _, err := os.Stat(dir); err != nil {
		return true
	}
	for _, m := range markers[framework] {
		if info, err := os.Stat(filepath.Join(dir, m)); err == nil && info.IsDir() {
			return true
		}
	}
	for _, m := range manifests[framework] {
		if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
			return false
		}
	}
	// No marker, no manifest: nothing suggests dependencies are needed.
	return true
}

// InstallCommandFor returns the conventional install command for framework,
// or "npm install" when unknown.
func InstallCommandFor(framework string) string {
	framework = strings.ToLower(strings.TrimSpace(framework))
	if cmd, ok := installCommands[framework]; ok {
		return cmd
	}
	return "npm install"
}
