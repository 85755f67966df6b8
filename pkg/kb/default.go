package kb

// DefaultArticles is the built-in article set used when no knowledge base
// is configured. Small but enough to exercise retrieval end to end.
func DefaultArticles() []Article {
	return []Article{
		{
			ID:    "kb-001",
			Title: "App crashes on login",
			Body: "If the application crashes during login, clear the local cache and " +
				"retry. On Windows, delete %APPDATA%/App/cache. On macOS, remove " +
				"~/Library/Caches/App. If the crash persists, reinstall the latest build.",
			Tags: []string{"crash", "login", "app"},
		},
		{
			ID:    "kb-002",
			Title: "Password reset not arriving",
			Body: "Password reset emails can take up to five minutes. Check the spam " +
				"folder and confirm the account email is correct before requesting another reset.",
			Tags: []string{"password", "email", "reset"},
		},
		{
			ID:    "kb-003",
			Title: "Billing charged twice",
			Body: "Duplicate charges usually indicate a retried payment. The duplicate is " +
				"voided automatically within 48 hours. If it settles, refund it from the billing console.",
			Tags: []string{"billing", "payment", "refund"},
		},
		{
			ID:    "kb-004",
			Title: "Sync stuck at pending",
			Body: "A sync stuck in pending state usually means a stale auth token. Sign out, " +
				"sign back in, and trigger a manual sync from settings.",
			Tags: []string{"sync", "pending", "token"},
		},
	}
}
