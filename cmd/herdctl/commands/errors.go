package commands

import "errors"

var errMissingAgentFlag = errors.New("--agent is required")
