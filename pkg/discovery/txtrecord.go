package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT record for info.
func EncodeTXT(info *DeviceInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeySerial] = info.Serial
	txt[TXTKeyModel] = info.Model

	api := info.APIPath
	if api == "" {
		api = DefaultAPIPath
	}
	txt[TXTKeyAPIPath] = api

	if info.Auth != "" && info.Auth != AuthNone {
		txt[TXTKeyAuth] = string(info.Auth)
	}

	return txt
}

// DecodeTXT parses a TXT record. Unknown keys are ignored.
func DecodeTXT(txt TXTRecordMap) (*DeviceInfo, error) {
	info := &DeviceInfo{Auth: AuthNone}

	var ok bool
	info.Serial, ok = txt[TXTKeySerial]
	if !ok || info.Serial == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySerial)
	}

	info.Model, ok = txt[TXTKeyModel]
	if !ok || info.Model == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyModel)
	}

	info.APIPath, ok = txt[TXTKeyAPIPath]
	if !ok || info.APIPath == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyAPIPath)
	}
	if !strings.HasPrefix(info.APIPath, "/") {
		return nil, fmt.Errorf("%w: api path %q is not absolute", ErrInvalidTXTRecord, info.APIPath)
	}

	if auth, ok := txt[TXTKeyAuth]; ok {
		switch AuthScheme(strings.ToLower(auth)) {
		case AuthNone:
		case AuthBearer:
			info.Auth = AuthBearer
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidAuth, auth)
		}
	}

	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a sorted slice of
// "key=value" strings, the format zeroconf expects.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// txtSize returns the wire size of the TXT strings (one length byte each).
func txtSize(strs []string) int {
	n := 0
	for _, s := range strs {
		n += 1 + len(s)
	}
	return n
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidInstance)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
