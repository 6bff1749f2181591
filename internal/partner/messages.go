package partner

import "fmt"

const (
	commandFindPartner = "findpartner"
	commandClose       = "close"

	commandFindPartnerDescription = "Join (or leave) the study partner queue."
	commandCloseDescription       = "Close your active study session and log its transcript."

	messageEphemeralWrongChannelFormat = ":warning: **This command can only be used in the designated pairing channel: <#%s>.**"
	messageEphemeralAlreadyActive      = ":warning: **You're already in an active study session.**"
	messageEphemeralStartFailed        = ":warning: **Pairing failed. Please try again in a moment.**"
	messageEphemeralCloseFailed        = ":warning: **Closing the session failed. Please try again in a moment.**"
	messageEphemeralNoSession          = ":warning: **No active study session found to close.**"
	messageEphemeralNotAllowed         = ":warning: **You don't have permission to close this session.**"

	messageEphemeralQueued = ":hourglass: **You've been added to the queue!**\n" +
		"There's no one looking for a partner right now, but there will be soon.\n" +
		"-# Run /findpartner again to be removed from the queue."
	messageEphemeralWithdrawn = ":white_check_mark: **You've been removed from the study partner queue.**"
	messageEphemeralClosed    = ":white_check_mark: **Session closed and logged.**"

	messageChannelInactivityNotice = "Session was inactive and will be closed automatically."

	messageWelcomeFormat = "Hello <@%s> and <@%s>! This is your private study channel. " +
		"Use /close here to end the session when you're done."

	messagePairedEphemeralFormat = ":white_check_mark: **You've been paired!** Head over to <#%s>."

	transcriptHeaderFormat = "Transcript for session between %s in channel <#%s> (reason: %s)"

	defaultLogChannelName = "findpartner-logs"
)

func wrongChannelMessage(pairingChannelID string) string {
	return fmt.Sprintf(messageEphemeralWrongChannelFormat, pairingChannelID)
}

func welcomeMessage(firstMemberID, secondMemberID string) string {
	return fmt.Sprintf(messageWelcomeFormat, firstMemberID, secondMemberID)
}

func pairedEphemeralMessage(channelID string) string {
	return fmt.Sprintf(messagePairedEphemeralFormat, channelID)
}
