package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envVarPattern recognizes ${VAR}, ${VAR:-default}, ${VAR:?error}, and bare
// $VAR references inside a config file, the same grammar the teacher's
// loader.go supports.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// expandEnvVars substitutes every recognized reference in input, leaving
// unrecognized/unset bare placeholders untouched and marking a missing
// ":?error" variable with an "ERROR:" prefix for expandEnvVarsWithValidation
// to surface as a config error.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		varName, modifier, modVal, bareVar := sub[1], sub[2], sub[3], sub[4]

		if bareVar != "" {
			if val, ok := os.LookupEnv(bareVar); ok {
				return val
			}
			return match
		}

		if varName == "" {
			return match
		}
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		switch modifier {
		case "?":
			msg := modVal
			if msg == "" {
				msg = "required environment variable not set"
			}
			return "ERROR:" + varName + ":" + msg
		case "-":
			return modVal
		default:
			return match
		}
	})
}

// expandEnvVarsWithValidation expands input and turns any unresolved
// ":?error" marker into a Go error instead of leaving it embedded in the
// document.
func expandEnvVarsWithValidation(input string) (string, error) {
	result := expandEnvVars(input)
	idx := strings.Index(result, "ERROR:")
	if idx == -1 {
		return result, nil
	}
	rest := result[idx+len("ERROR:"):]
	colon := strings.Index(rest, ":")
	if colon == -1 {
		return "", fmt.Errorf("malformed required-variable marker")
	}
	varName := rest[:colon]
	msg := rest[colon+1:]
	return "", fmt.Errorf("environment variable %s: %s", varName, msg)
}
