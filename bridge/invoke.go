package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// AddTextArgs are the arguments of add_text.
type AddTextArgs struct {
	Content *string `json:"content"`
}

// UpdateTextArgs are the arguments of update_text.
type UpdateTextArgs struct {
	ID      *uint64 `json:"id"`
	Content *string `json:"content"`
}

// DeleteTextArgs are the arguments of delete_text.
type DeleteTextArgs struct {
	ID *uint64 `json:"id"`
}

// Invoke runs the command called name with JSON object arguments and returns
// its JSON-encodable result. delete_text yields a nil result.
func (c *Commands) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case CmdLoadTexts:
		if err := decodeArgs(name, args, &struct{}{}); err != nil {
			return nil, err
		}
		return c.LoadTexts(ctx)
	case CmdAddText:
		var a AddTextArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		if a.Content == nil {
			return nil, missingArg(name, "content")
		}
		return c.AddText(ctx, *a.Content)
	case CmdUpdateText:
		var a UpdateTextArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		if a.ID == nil {
			return nil, missingArg(name, "id")
		}
		if a.Content == nil {
			return nil, missingArg(name, "content")
		}
		return c.UpdateText(ctx, *a.ID, *a.Content)
	case CmdDeleteText:
		var a DeleteTextArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		if a.ID == nil {
			return nil, missingArg(name, "id")
		}
		return nil, c.DeleteText(ctx, *a.ID)
	default:
		return nil, &CommandError{
			Command: name,
			Message: fmt.Sprintf("%v: %q", ErrUnknownCommand, name),
			err:     ErrUnknownCommand,
		}
	}
}

// decodeArgs decodes a single JSON object into dst, rejecting unknown fields.
// Empty arguments are treated as an empty object.
func decodeArgs(command string, args json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidArgs(command, err.Error())
	}
	if _, err := dec.Token(); err != io.EOF {
		return invalidArgs(command, "arguments must be a single JSON object")
	}
	return nil
}

func missingArg(command, field string) error {
	return invalidArgs(command, fmt.Sprintf("missing %q", field))
}

func invalidArgs(command, detail string) error {
	return &CommandError{
		Command: command,
		Message: fmt.Sprintf("%v for %s: %s", ErrInvalidArgs, command, detail),
		err:     ErrInvalidArgs,
	}
}
