package strutils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Amund211/serverstats/internal/domain"
)

// SteamID64 of account id 0 in the public universe
const STEAMID64_BASE uint64 = 76561197960265728

const STEAMID64_LENGTH = 17

const maxAccountID = 1<<32 - 1

// ParseSteamID converts any of the common textual forms to a SteamID64
//
// Accepted forms:
//   - SteamID64:  76561197960287930
//   - Steam2:     STEAM_0:0:11101 (universe digit is ignored)
//   - Steam3:     [U:1:22202] (also without brackets)
//   - account id: 22202
func ParseSteamID(raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty input", domain.ErrInvalidSteamID)
	}

	upper := strings.ToUpper(trimmed)

	if strings.HasPrefix(upper, "STEAM_") {
		return parseSteam2(raw, upper)
	}

	if strings.HasPrefix(upper, "[U:") || strings.HasPrefix(upper, "U:") {
		return parseSteam3(raw, upper)
	}

	value, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: not a number. input: '%s'", domain.ErrInvalidSteamID, raw)
	}

	if value <= maxAccountID {
		return STEAMID64_BASE + value, nil
	}

	if len(trimmed) != STEAMID64_LENGTH || value < STEAMID64_BASE || value-STEAMID64_BASE > maxAccountID {
		return 0, fmt.Errorf("%w: out of range. input: '%s'", domain.ErrInvalidSteamID, raw)
	}

	return value, nil
}

func parseSteam2(raw, upper string) (uint64, error) {
	parts := strings.Split(strings.TrimPrefix(upper, "STEAM_"), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: malformed steam2 id. input: '%s'", domain.ErrInvalidSteamID, raw)
	}

	if _, err := strconv.ParseUint(parts[0], 10, 8); err != nil {
		return 0, fmt.Errorf("%w: malformed universe. input: '%s'", domain.ErrInvalidSteamID, raw)
	}

	authServer, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || authServer > 1 {
		return 0, fmt.Errorf("%w: malformed auth server. input: '%s'", domain.ErrInvalidSteamID, raw)
	}

	accountNumber, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed account number. input: '%s'", domain.ErrInvalidSteamID, raw)
	}

	accountID := accountNumber*2 + authServer
	if accountID > maxAccountID {
		return 0, fmt.Errorf("%w: account number out of range. input: '%s'", domain.ErrInvalidSteamID, raw)
	}

	return STEAMID64_BASE + accountID, nil
}

func parseSteam3(raw, upper string) (uint64, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(upper, "["), "]")
	parts := strings.Split(inner, ":")
	if len(parts) != 3 || parts[0] != "U" || parts[1] != "1" {
		return 0, fmt.Errorf("%w: malformed steam3 id. input: '%s'", domain.ErrInvalidSteamID, raw)
	}

	accountID, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil || accountID > maxAccountID {
		return 0, fmt.Errorf("%w: malformed account id. input: '%s'", domain.ErrInvalidSteamID, raw)
	}

	return STEAMID64_BASE + accountID, nil
}

// NormalizeSteamID returns the decimal SteamID64 form of raw
func NormalizeSteamID(raw string) (string, error) {
	id64, err := ParseSteamID(raw)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(id64, 10), nil
}

func IsSteamID64(id string) bool {
	if len(id) != STEAMID64_LENGTH {
		return false
	}
	normalized, err := NormalizeSteamID(id)
	if err != nil {
		return false
	}
	return normalized == id
}
