package auth

import (
	"strings"
	"testing"
)

func TestHashKey_PHCFormat(t *testing.T) {
	t.Parallel()

	hash, err := HashKey("vk_test_aabbcc_00112233445566778899aabbccddeeff")
	if err != nil {
		t.Fatalf("HashKey() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash %q missing argon2id PHC prefix", hash)
	}
	if parts := strings.Split(hash, "$"); len(parts) != 6 {
		t.Errorf("hash has %d PHC segments, want 6", len(parts))
	}
}

func TestHashKey_SaltedHashesDiffer(t *testing.T) {
	t.Parallel()

	first, err := HashKey("same-input")
	if err != nil {
		t.Fatalf("HashKey() error = %v", err)
	}
	second, err := HashKey("same-input")
	if err != nil {
		t.Fatalf("HashKey() error = %v", err)
	}
	if first == second {
		t.Error("hashes of the same input should differ due to random salt")
	}
}

func TestVerifyKey_InvalidHashFormats(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		hash string
	}{
		{name: "empty", hash: ""},
		{name: "not PHC", hash: "plainhash"},
		{name: "wrong algorithm", hash: "$bcrypt$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"},
		{name: "missing segments", hash: "$argon2id$v=19$m=65536,t=3,p=4"},
		{name: "bad base64 salt", hash: "$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := VerifyKey("anything", tc.hash); err == nil {
				t.Errorf("VerifyKey with hash %q expected error, got nil", tc.hash)
			}
		})
	}
}

func TestQuickHash(t *testing.T) {
	t.Parallel()

	first := QuickHash("vk_live_7a9b3c_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b")
	second := QuickHash("vk_live_7a9b3c_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b")

	if first != second {
		t.Error("QuickHash should be deterministic")
	}
	if len(first) != 32 {
		t.Errorf("QuickHash length = %d, want 32", len(first))
	}
	if first == QuickHash("different-input") {
		t.Error("different inputs should produce different hashes")
	}
}
