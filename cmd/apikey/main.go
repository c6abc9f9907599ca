// Package main is a CLI for provisioning API keys.
// The plaintext key is printed exactly once; only the hash is stored.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/verimail/verimail/internal/auth"
	"github.com/verimail/verimail/internal/model"
	"github.com/verimail/verimail/internal/repository"
)

type output struct {
	KeyID     string `json:"key_id"`
	Key       string `json:"key"`
	KeyPrefix string `json:"key_prefix"`
	Name      string `json:"name"`
	Tier      string `json:"tier"`
	Limit     int    `json:"daily_limit"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		name        = flag.String("name", "bootstrap", "API key name")
		tier        = flag.String("tier", model.TierFree, "Quota tier (free, basic, premium)")
		env         = flag.String("env", auth.EnvLive, "Key environment (live or test)")
		format      = flag.String("format", "plain", "Output format: plain or json")
		revokeID    = flag.String("revoke", "", "Deactivate the key with this ID instead of creating one")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	if *revokeID != "" {
		if err := repo.DeactivateAPIKey(ctx, *revokeID); err != nil {
			fmt.Fprintln(os.Stderr, "revoke api key:", err)
			os.Exit(1)
		}
		fmt.Println("revoked", *revokeID)
		return
	}

	if !validTier(*tier) {
		fmt.Fprintf(os.Stderr, "invalid tier %q; use free, basic, or premium\n", *tier)
		os.Exit(1)
	}

	generated, err := auth.GenerateAPIKey(*env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate api key:", err)
		os.Exit(1)
	}

	apiKey := &model.APIKey{
		ID:        ulid.Make().String(),
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Name:      *name,
		Tier:      *tier,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		fmt.Fprintln(os.Stderr, "create api key:", err)
		os.Exit(1)
	}

	out := output{
		KeyID:     apiKey.ID,
		Key:       generated.Plaintext,
		KeyPrefix: apiKey.KeyPrefix,
		Name:      apiKey.Name,
		Tier:      apiKey.Tier,
		Limit:     apiKey.DailyLimit(),
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Key)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func validTier(tier string) bool {
	_, ok := model.DailyLimits[tier]
	return ok
}
