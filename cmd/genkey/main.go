package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const minKeyLength = 8

func main() {
	stdin := flag.Bool("stdin", false, "read the API key from stdin instead of prompting")
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost (higher is slower and stronger)")
	flag.Usage = printUsage
	flag.Parse()

	var key []byte
	var err error
	if *stdin {
		key, err = readKey(os.Stdin)
	} else {
		key, err = promptKey()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	hash, err := hashKey(key, *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Set this as API_KEY_HASH in the service environment.")
	fmt.Fprintln(os.Stderr, "Clients authenticate with the key itself via the X-Api-Key header.")
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Video Compress API Key Hashing")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage: genkey [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Without -stdin the key is read interactively with hidden input.")
}

// promptKey reads the key twice with echo disabled.
func promptKey() ([]byte, error) {
	fmt.Print("API Key: ")
	key, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	fmt.Print("Confirm API Key: ")
	confirm, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	if !bytes.Equal(key, confirm) {
		return nil, fmt.Errorf("keys do not match")
	}
	return key, validateKey(key)
}

// readKey takes the first line from r, for piped invocations like
// openssl rand -hex 32 | genkey -stdin.
func readKey(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	key := []byte(strings.TrimRight(line, "\r\n"))
	return key, validateKey(key)
}

func validateKey(key []byte) error {
	if len(key) < minKeyLength {
		return fmt.Errorf("key must be at least %d characters", minKeyLength)
	}
	// bcrypt silently ignores everything past 72 bytes
	if len(key) > 72 {
		return fmt.Errorf("key must be at most 72 bytes, got %d", len(key))
	}
	return nil
}

func hashKey(key []byte, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(key, cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hash), nil
}
