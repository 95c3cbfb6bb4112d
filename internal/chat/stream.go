package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"textrefine/internal/models"
)

var (
	sseDataPrefix = []byte("data:")
	sseDone       = []byte("[DONE]")
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content json.RawMessage `json:"content"`
		} `json:"delta"`
		FinishReason json.RawMessage `json:"finish_reason"`
	} `json:"choices"`
}

// streamDecoder accumulates text deltas and the last finish reason.
type streamDecoder struct {
	text         strings.Builder
	finishReason string
}

// DecodeStream consumes a text/event-stream body of chat-completion chunks.
// It returns at the [DONE] marker, or at end of stream when any text arrived.
func DecodeStream(ctx context.Context, body io.Reader) (models.ChatCompletionResult, error) {
	var dec streamDecoder
	reader := bufio.NewReader(body)

	for {
		if err := ctx.Err(); err != nil {
			return models.ChatCompletionResult{}, canceledError(err)
		}

		// ReadBytes holds a partial line until its newline arrives in a later chunk.
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return models.ChatCompletionResult{}, transportError(ctx, "read stream", readErr)
		}

		atEOF := readErr != nil
		done, err := dec.processLine(line, atEOF)
		if err != nil {
			return models.ChatCompletionResult{}, err
		}
		if done {
			return dec.result(), nil
		}
		if atEOF {
			break
		}
	}

	if strings.TrimSpace(dec.text.String()) != "" {
		return dec.result(), nil
	}
	return models.ChatCompletionResult{}, streamFormatError("empty stream result", nil)
}

// processLine handles one SSE line. An unterminated trailing line that fails
// to parse is treated as a cut-off tail rather than a malformed chunk.
func (d *streamDecoder) processLine(line []byte, trailing bool) (bool, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || !bytes.HasPrefix(line, sseDataPrefix) {
		return false, nil
	}

	data := bytes.TrimSpace(line[len(sseDataPrefix):])
	if bytes.Equal(data, sseDone) {
		return true, nil
	}

	if !json.Valid(data) {
		if trailing {
			return false, nil
		}
		return false, streamFormatError("stream chunk unparsable", nil)
	}

	var chunk streamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		// Valid JSON of an unexpected shape carries no delta.
		return false, nil
	}
	if len(chunk.Choices) == 0 {
		return false, nil
	}

	choice := chunk.Choices[0]
	if reason, ok := rawString(choice.FinishReason); ok {
		d.finishReason = reason
	}
	if delta, ok := rawString(choice.Delta.Content); ok {
		d.text.WriteString(delta)
	}
	return false, nil
}

func (d *streamDecoder) result() models.ChatCompletionResult {
	return models.ChatCompletionResult{
		Content:      strings.TrimSpace(d.text.String()),
		FinishReason: d.finishReason,
	}
}
