package util

import (
	"fmt"
	"os"
	"strings"
)

// Errors collects several errors so that every missing configuration
// variable can be reported in one pass.
type Errors []error

func (e Errors) Error() string {
	messages := []string{}
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, ", ")
}

// RequireEnv reads an environment variable, appending to errs if it
// isn't set.
func RequireEnv(varName string, errs *Errors) string {
	envVar := os.Getenv(varName)
	if len(envVar) == 0 {
		*errs = append(*errs, fmt.Errorf("environment variable %s must be set", varName))
	}
	return envVar
}
