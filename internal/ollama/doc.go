// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama is a small client for a local Ollama server.
//
// It covers what the model lifecycle and chat paths use and nothing more:
// a reachability check, listing installed models, pulling with per-line
// progress, making a model resident or evicting it, and non-streamed chat.
//
// Every method returns *ClientError on failure. Use IsNotRunning, IsTimeout
// and IsModelNotFound to branch on the common cases.
//
//	c := ollama.NewClientWithConfig(&ollama.ClientConfig{KeepAlive: "10m"})
//	if err := c.Pull(ctx, "llama3.2:1b", func(p ollama.PullProgress) {
//		log.Println(p.Text())
//	}); err != nil {
//		return err
//	}
//	resp, err := c.Chat(ctx, "llama3.2:1b",
//		[]ollama.Message{ollama.NewUserMessage("Hello")},
//		&ollama.Options{NumPredict: 15})
package ollama
