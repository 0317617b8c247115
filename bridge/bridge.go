// Package bridge exposes the text store as the named commands the GUI shell
// invokes: load_texts, add_text, update_text and delete_text.
//
// Failures are returned as *CommandError, whose message is the string
// payload handed back to the front end.
package bridge

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"textnotes/store"
)

// Command names as invoked by the GUI shell.
const (
	CmdLoadTexts  = "load_texts"
	CmdAddText    = "add_text"
	CmdUpdateText = "update_text"
	CmdDeleteText = "delete_text"
)

// ErrUnknownCommand is returned by Invoke for a name that is not a command.
var ErrUnknownCommand = errors.New("unknown command")

// ErrInvalidArgs is returned by Invoke when the arguments cannot be decoded.
var ErrInvalidArgs = errors.New("invalid arguments")

// CommandError is the error payload returned to the caller of a command.
type CommandError struct {
	Command string
	Message string
	err     error
}

func (e *CommandError) Error() string {
	return e.Message
}

func (e *CommandError) Unwrap() error {
	return e.err
}

func commandError(command string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}
	return &CommandError{Command: command, Message: err.Error(), err: err}
}

// Observer is notified after every command with its outcome.
type Observer func(command string, elapsed time.Duration, err error)

// Commands runs the text commands against a store.
type Commands struct {
	store    store.Store
	logger   *zap.Logger
	observer Observer
}

// New creates Commands. A nil logger discards output.
func New(st store.Store, logger *zap.Logger) *Commands {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Commands{store: st, logger: logger}
}

// SetObserver registers fn to be called after every command.
func (c *Commands) SetObserver(fn Observer) {
	c.observer = fn
}

// LoadTexts returns every stored text in order.
func (c *Commands) LoadTexts(ctx context.Context) (texts []store.TextItem, err error) {
	defer c.track(CmdLoadTexts, time.Now(), &err)
	texts, err = c.store.Load(ctx)
	return texts, commandError(CmdLoadTexts, err)
}

// AddText stores content as a new text and returns it.
func (c *Commands) AddText(ctx context.Context, content string) (item store.TextItem, err error) {
	defer c.track(CmdAddText, time.Now(), &err)
	item, err = c.store.Add(ctx, content)
	return item, commandError(CmdAddText, err)
}

// UpdateText replaces the content of the text with id.
func (c *Commands) UpdateText(ctx context.Context, id uint64, content string) (item store.TextItem, err error) {
	defer c.track(CmdUpdateText, time.Now(), &err)
	item, err = c.store.Update(ctx, id, content)
	return item, commandError(CmdUpdateText, err)
}

// DeleteText removes the text with id. A missing id succeeds.
func (c *Commands) DeleteText(ctx context.Context, id uint64) (err error) {
	defer c.track(CmdDeleteText, time.Now(), &err)
	return commandError(CmdDeleteText, c.store.Delete(ctx, id))
}

func (c *Commands) track(command string, start time.Time, errp *error) {
	elapsed := time.Since(start)
	err := *errp
	if err != nil {
		c.logger.Warn("command failed",
			zap.String("command", command),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	} else {
		c.logger.Debug("command completed",
			zap.String("command", command),
			zap.Duration("elapsed", elapsed))
	}
	if c.observer != nil {
		c.observer(command, elapsed, err)
	}
}
