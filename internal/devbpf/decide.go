package devbpf

// Decide evaluates rules against one device access attempt using the same
// first-match semantics the assembled classifier encodes in bytecode, as a
// pure-Go reference for that rule walk. Load and Assemble do not call it.
func Decide(rules []DeviceRule, devType DeviceType, access Access, major, minor int32) bool {
	defaultPolicy := false
	for _, r := range rules {
		if r.Global {
			defaultPolicy = r.Allow
			continue
		}
		if r.Type != DeviceTypeAny && r.Type != devType {
			continue
		}
		if r.Access != 0 && r.Access != accessAll && r.Access&access != access {
			continue
		}
		if r.Major != wildcard && r.Major != major {
			continue
		}
		if r.Minor != wildcard && r.Minor != minor {
			continue
		}
		return r.Allow
	}
	return defaultPolicy
}
