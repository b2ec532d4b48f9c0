package telakit

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
)

// Follow воспроизводит файл path, а затем продолжает отправлять строки,
// дописанные в него, пока не будет отменён ctx или файл не будет удалён.
//
// Неполная последняя строка (без '\n') ждёт, пока её допишут.
// Возвращает количество отправленных строк; отмена ctx ошибкой не считается.
func (c *Client) Follow(ctx context.Context, path string) (int, error) {
	if !c.IsConnected() {
		return 0, ErrClientNotConnected
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return 0, fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open commands file: %w", err)
	}
	defer f.Close()

	if err := watcher.Add(path); err != nil {
		return 0, fmt.Errorf("watch %s: %w", path, err)
	}

	t := &tail{client: c, r: bufio.NewReader(f)}
	if err := t.drain(); err != nil {
		return t.sent, err
	}
	c.logger.Info("Following %s", path)

	for {
		select {
		case <-ctx.Done():
			return t.sent, nil

		case event, ok := <-watcher.Events:
			if !ok {
				return t.sent, nil
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) || (event.Has(fsnotify.Chmod) && removed(path)) {
				c.logger.Info("Stopped following %s: file %s", path, event.Op)
				return t.sent, nil
			}
			if event.Has(fsnotify.Write) {
				if err := t.drain(); err != nil {
					return t.sent, err
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return t.sent, nil
			}
			return t.sent, fmt.Errorf("file watcher: %w", err)
		}
	}
}

// removed сообщает, что файла path больше нет. Пока файл открыт, inotify
// присылает Chmod вместо Remove.
func removed(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, os.ErrNotExist)
}

// tail дочитывает файл до конца, отправляя законченные строки.
type tail struct {
	client  *Client
	r       *bufio.Reader
	pending []byte
	sent    int
}

func (t *tail) drain() error {
	for {
		chunk, err := t.r.ReadBytes('\n')
		t.pending = append(t.pending, chunk...)

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read commands: %w", err)
		}

		line := bytes.TrimRight(t.pending, "\r\n")
		t.pending = t.pending[:0]
		if len(line) < minLineLength {
			continue
		}
		if err := t.client.SendLine(line); err != nil {
			return err
		}
		t.sent++
	}
}
