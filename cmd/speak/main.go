// Command speak sends one prompt to an aloud server and plays the
// spoken reply, printing each word as it is voiced.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/lukasbauer/aloud/internal/llm"
	"github.com/lukasbauer/aloud/internal/playback"
	"github.com/lukasbauer/aloud/internal/sse"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "aloud server base URL")
	message := flag.String("message", "", "prompt to send (required)")
	token := flag.String("token", "", "bearer token, if the server requires auth")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	if *message == "" {
		fmt.Fprintln(os.Stderr, "usage: speak -message \"...\" [-server URL] [-token TOKEN]")
		os.Exit(2)
	}

	if err := run(*server, *message, *token, logger); err != nil {
		logger.Fatalf("speak: %v", err)
	}
}

func run(server, message, token string, logger *log.Logger) error {
	body, err := json.Marshal(map[string][]llm.Message{
		"messages": {{Role: "user", Content: message}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, server+"/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}

	// The engine hands every session a fresh speaker-backed sink. The
	// CLI runs a single session, so one sink is all we get.
	var sink *playback.BeepSink
	engine := playback.NewEngine(func() (playback.Sink, error) {
		sink = playback.NewBeepSink(logger)
		return sink, nil
	}, logger)

	session, err := engine.StartSession()
	if err != nil {
		return err
	}

	dec := sse.NewDecoder(resp.Body, logger)
	for {
		msg, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading event stream: %w", err)
		}

		switch msg.Type {
		case sse.TypeAudio:
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				logger.Printf("skipping undecodable audio chunk: %v", err)
				continue
			}
			engine.OnAudio(session, chunk)
		case sse.TypeWordTimes:
			engine.OnWordTimes(session, msg.Words, msg.WordStartTimesMs)
		}
	}

	if err := engine.Finalize(session); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	if sink == nil {
		return errors.New("stream contained no audio")
	}

	printWords(engine, sink)
	return nil
}

// printWords follows playback and writes each word to stdout the moment
// its start time is reached.
func printWords(engine *playback.Engine, sink *playback.BeepSink) {
	finished := make(chan struct{})
	go func() {
		sink.Wait()
		close(finished)
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	words := engine.Words()
	printed := -1
	for {
		select {
		case <-finished:
			// Flush anything the ticker did not reach
			for i := printed + 1; i < len(words); i++ {
				fmt.Printf("%s ", words[i])
			}
			fmt.Println()
			return
		case <-ticker.C:
			idx := engine.CurrentWordIndex(engine.PositionMs())
			for i := printed + 1; i <= idx && i < len(words); i++ {
				fmt.Printf("%s ", words[i])
			}
			if idx > printed {
				printed = idx
			}
		}
	}
}
