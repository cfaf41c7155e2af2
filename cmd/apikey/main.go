// apikey は x-api-key に入れるキーを1つ出力する（有効期限5分）。
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"boilerplate/internal/apikey"

	"github.com/joho/godotenv"
	"golang.org/x/term"
)

func main() {
	_ = godotenv.Load()

	userKey := flag.String("user", os.Getenv("USER_KEY"), "user key (USER_KEY)")
	flag.Parse()

	if *userKey == "" {
		fmt.Fprintln(os.Stderr, "USER_KEY is not set; pass -user")
		os.Exit(1)
	}

	secret := os.Getenv("SECRET_KEY")
	if secret == "" {
		s, err := readSecret()
		if err != nil {
			fmt.Fprintln(os.Stderr, "read secret:", err)
			os.Exit(1)
		}
		secret = s
	}
	if secret == "" {
		fmt.Fprintln(os.Stderr, "SECRET_KEY is empty")
		os.Exit(1)
	}

	fmt.Println(apikey.Generate(*userKey, secret, time.Now()))
}

// 端末なら入力を表示しない。パイプなら1行読む。
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "SECRET_KEY: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
