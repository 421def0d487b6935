package session

// ResolveResume picks the single most authoritative resume point from the
// candidate sources, in fixed priority order: the current bundle's token,
// then the most recent ledger message carrying a token, then the most recent
// history record carrying a token. Returns nil when no source has a token.
// Pure and deterministic for a given (bundle, messages, history) triple.
func ResolveResume(bundle *RecoveryBundle, messages []LedgerEntry, history []HistoryRecord) *ResumePoint {
	if bundle != nil && bundle.ResumeToken != "" {
		return &ResumePoint{Token: bundle.ResumeToken, Source: "bundle"}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].ResumeToken != "" {
			return &ResumePoint{Token: messages[i].ResumeToken, Source: "message"}
		}
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].ResumeToken != "" {
			return &ResumePoint{Token: history[i].ResumeToken, Source: "history"}
		}
	}
	return nil
}

// CollectHints merges mitigation hints from every source into a unique list
// keyed by category:action. Traversal order is bundle, then messages oldest
// to newest, then history oldest to newest; the first occurrence of a key
// wins and later duplicates are discarded, preserving the earliest advisory
// content rather than the freshest. Output order is first-seen order.
func CollectHints(bundle *RecoveryBundle, messages []LedgerEntry, history []HistoryRecord) []Hint {
	seen := make(map[string]struct{})
	var out []Hint

	add := func(hints []Hint) {
		for _, h := range hints {
			key := h.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, h)
		}
	}

	if bundle != nil {
		add(bundle.Hints)
	}
	for _, m := range messages {
		add(m.Hints)
	}
	for _, rec := range history {
		add(rec.Hints)
	}
	return out
}
