package chat

// Fixed replies.
const (
	msgWelcome         = "Hello! I'm your Azure Boards Assistant.\nLoading sprint data..."
	msgStillLoading    = "⚠️ Sprint data is still loading. Please wait..."
	msgHelpHint        = "Type help to see what I can do!"
	msgNotLoaded       = "⚠️ No sprint data loaded yet; please wait and try again."
	msgNudge           = "💡 Try 'help' to see a list of commands."
	msgAIUnavailable   = "⚠️ AI is temporarily unavailable. Please try again."
	msgAIPrefix        = "🤖 AI Assistant:\n\n"
	msgGenericFailure  = "⚠️ Sorry, something went wrong handling that request. Please try again."
	msgUnreachable     = "Azure Boards is unreachable (timeout)"
	msgCancelled       = "❎ Cancelled. Nothing was created."
	msgNothingToCancel = "Nothing to cancel."
	msgItemNotFound    = "⚠️ Could not find that work item."

	promptIssueTitle       = "📝 Let's create a backlog item (Issue).\n\nWhat's the title?"
	promptIssueDescription = "Great! Now provide a description (or type 'skip'):"
	promptIssueAcceptance  = "Add acceptance criteria (or type 'skip'):"
	promptIssuePoints      = "Estimate points (number) or type 'skip':"
	promptIssueAssignee    = "Who should be assigned? (email/name or 'skip'):"

	promptTaskTitle       = "Sure, what is the task title?"
	promptTaskDescription = "Add a short description (or type 'skip'):"
	promptTaskAssignee    = "Who should I assign this to? (email/name or 'skip'):"
	promptTaskRemaining   = "Enter Remaining Work (hours) or 'skip':"
)

// llmFallbackMinLen is the normalized length above which unmatched input goes to the LLM.
const llmFallbackMinLen = 10
