// Command tester is a manual smoke client. It registers a throwaway account,
// sends one question (or one photo) and prints the assistant's answer.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Server base URL")
	query := flag.String("query", "What is the usual adult dose of paracetamol?", "Question to ask")
	image := flag.String("image", "", "Optional path to a pill photo to identify instead")
	caption := flag.String("caption", "", "Optional caption sent with the photo")
	flag.Parse()

	client := &http.Client{Timeout: 2 * time.Minute}

	// 1. Throwaway account, one per run
	email := fmt.Sprintf("tester-%s@example.com", uuid.NewString()[:8])
	token, err := register(client, *server, email)
	if err != nil {
		log.Fatalf("Registration failed: %v", err)
	}
	fmt.Println(color.New(color.FgGreen).Render("Registered " + email))

	// 2. One consultation
	start := time.Now()
	var answer answerResponse
	if *image != "" {
		answer, err = identify(client, *server, token, *image, *caption)
	} else {
		answer, err = ask(client, *server, token, *query)
	}
	if err != nil {
		log.Fatalf("Consultation failed: %v", err)
	}

	// 3. Report
	fmt.Printf("\nConversation: %s\nIntents: %v\nAgents: %v\nLatency: %dms (round trip %v)\n",
		answer.ConversationID, answer.Intents, answer.Agents, answer.LatencyMs, time.Since(start).Round(time.Millisecond))
	if answer.Emergency {
		fmt.Println(color.New(color.BgRed, color.FgWhite).Render("EMERGENCY FLAGGED"))
	}
	fmt.Println("\n" + answer.Content)
}

type answerResponse struct {
	ConversationID string   `json:"conversation_id"`
	Content        string   `json:"content"`
	Intents        []string `json:"intents"`
	Agents         []string `json:"agents"`
	Emergency      bool     `json:"emergency"`
	LatencyMs      int64    `json:"latency_ms"`
}

func register(client *http.Client, server, email string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": "Tester-" + uuid.NewString(),
	})
	resp, err := client.Post(server+"/api/v1/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func ask(client *http.Client, server, token, query string) (answerResponse, error) {
	body, _ := json.Marshal(map[string]string{"content": query})
	req, err := http.NewRequest(http.MethodPost, server+"/api/v1/query", bytes.NewReader(body))
	if err != nil {
		return answerResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return send(client, req)
}

func identify(client *http.Client, server, token, path, caption string) (answerResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return answerResponse{}, err
	}
	defer func() {
		_ = file.Close()
	}()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", path)
	if err != nil {
		return answerResponse{}, err
	}
	if _, err = io.Copy(part, file); err != nil {
		return answerResponse{}, err
	}
	if caption != "" {
		if err = writer.WriteField("caption", caption); err != nil {
			return answerResponse{}, err
		}
	}
	if err = writer.Close(); err != nil {
		return answerResponse{}, err
	}

	req, err := http.NewRequest(http.MethodPost, server+"/api/v1/identify", &buf)
	if err != nil {
		return answerResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return send(client, req)
}

func send(client *http.Client, req *http.Request) (answerResponse, error) {
	resp, err := client.Do(req)
	if err != nil {
		return answerResponse{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return answerResponse{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, raw)
	}
	var answer answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return answerResponse{}, err
	}
	return answer, nil
}
