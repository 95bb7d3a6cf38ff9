// Package mpointers provides small pointer-conversion helpers used when
// building partial-update structs whose fields distinguish "unset" from
// "zero value".
package mpointers

func String(v string) *string { return &v }

func Int(v int) *int { return &v }

func Bool(v bool) *bool { return &v }

func StringOrNil(v string) *string {
	if v == "" {
		return nil
	}

	return &v
}

func StringValue(v *string) string {
	if v == nil {
		return ""
	}

	return *v
}

func BoolValue(v *bool) bool {
	if v == nil {
		return false
	}

	return *v
}
