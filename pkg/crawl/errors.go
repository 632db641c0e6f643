package crawl

import (
	"context"
	"errors"
	"fmt"
)

type Stage string

const (
	StageArtists   Stage = "artists"
	StageExpansion Stage = "expansion"
	StageTracks    Stage = "tracks"
)

// AbortError sinaliza que a unidade de um perfil foi abortada. O Runner
// decide se pula para o próximo perfil ou encerra a execução.
type AbortError struct {
	Stage Stage
	Key   string
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s: perfil %s abortado: %v", e.Stage, e.Key, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

func IsAbort(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}

// abort embrulha err como AbortError, exceto cancelamento de contexto, que
// sobe intacto.
func abort(stage Stage, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &AbortError{Stage: stage, Key: key, Err: err}
}
