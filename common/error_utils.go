package common

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
)

func PanicIfError(config *BaseConfig, err error) {
	if err != nil {
		printUnexpectedError(config, err)
		os.Exit(1)
	}
}

// Meant to be deferred in main
func HandleUnexpectedPanic(config *BaseConfig) {
	if r := recover(); r != nil {
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("%v", r)
		}
		printUnexpectedError(config, err)
		os.Exit(1)
	}
}

func printUnexpectedError(config *BaseConfig, err error) {
	errorMessage := err.Error()
	stackTrace := string(debug.Stack())

	LogError(config, "Unexpected error:", strings.Split(errorMessage, "\n")[0])
	LogError(config, "Version:", VERSION, "OS:", runtime.GOOS+"-"+runtime.GOARCH)
	if strings.Contains(errorMessage, "\n") {
		LogError(config, errorMessage)
	}
	LogDebug(config, stackTrace)
}
