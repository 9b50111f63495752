package flow

import (
	"fmt"
	"strings"
)

// Spoken-reply token caps. Short prompts keep synthesized answers tight;
// the knowledge summary gets more room.
const (
	shortReplyTokens = 150

	ShortReplyTokens       = shortReplyTokens
	EmailConfirmTokens     = 300
	GreetingTokens         = 300
	KnowledgeSummaryTokens = 400
)

const (
	PromptAskTime = "I'd be happy to schedule a consultation session with our expert. " +
		"What time would suit you best for the consultation?"

	PromptRetryTime = "I'm sorry, I couldn't understand the time you provided. " +
		"Could you please specify a different time that suits you?"

	PromptSpellEmail = "Please provide your email address so I can send you the meeting details. " +
		"Please spell it out for me."

	PromptInvalidEmail = "The email address you provided doesn't seem to be valid. " +
		"Could you please spell it out again?"

	PromptReenterEmail = "No problem. Please provide your email address so I can send you the " +
		"meeting details. Please spell it out for me."

	PromptNewEmail = "No problem! Please spell out the email address you'd like to use for this booking."

	PromptBookingSuccess = "Great! Your training session has been booked successfully! " +
		"I've sent the meeting details to your email. Looking forward to your training session!"

	PromptBookingFailed = "I'm sorry, I encountered an issue while booking your training session. " +
		"Please try again later."

	PromptInvestmentConsent = "It sounds like you're interested in investing. " +
		"Are you ready to be connected to our fundraising expert? Please say yes or no."

	PromptInvestmentDeclined = "Understood. If you have any other questions or need further " +
		"assistance, feel free to ask!"

	PromptRedirectFailed = "I apologize, but I'm having trouble connecting you to our investment " +
		"expert. Please try again in a moment."

	PromptKnowledgeMiss = "I'm sorry, I couldn't access the knowledge base at this time."

	PromptKnowledgeChecking = "Give me a second, I'm checking the documentation."

	PromptAskEmailAfterMiss = "I couldn't find a stored email address for you. Could you please " +
		"provide your email address? I'll confirm it with you before scheduling the training session."

	PromptNewCaller = "You are Marcus, a friendly AI consultant. Introduce yourself briefly " +
		"and ask for the user's name."

	PromptGenericReturn = "Hello! Welcome back. How can I assist you today?"
)

func ConfirmEmailPrompt(email string) string {
	return fmt.Sprintf("Thank you! Just to confirm, your email address is spelled as: %s. "+
		"Is that correct? Please say \"yes\" or \"no\".", SpellOutEmail(email))
}

func ConfirmStoredEmailPrompt(email string) string {
	return fmt.Sprintf("I see that I have your email address on file (%s). Would you like me "+
		"to use this email for the booking? Please say yes or no.", SpellOutEmail(email))
}

func RetrievedEmailPrompt(email string) string {
	return fmt.Sprintf("Your email address is %s. Is that correct? Please say \"yes\" or \"no\".",
		SpellOutEmail(email))
}

func ReturningCallerPrompt(name, lastTopic string) string {
	return fmt.Sprintf("Nice to see you again, %s! Your last conversation was about %s. "+
		"Do you want to continue that topic or do you have another question?", name, lastTopic)
}

func KnowledgeSummaryPrompt(answer string) string {
	return fmt.Sprintf("Based on the knowledge base, provide a concise summary of the "+
		"following information: %s", answer)
}

func MemoryAugmentedPrompt(utterance string, memories []string) string {
	return fmt.Sprintf("The user said: %q. Based on previous conversations, I remember: %s. "+
		"Please incorporate this information naturally into your response if relevant.",
		utterance, strings.Join(memories, ". "))
}

func MemoryToolPrompt(memories []string) string {
	if len(memories) == 0 {
		return "No memories were found. Please provide a polite response asking the user for this information."
	}
	return fmt.Sprintf("Based on the retrieved memories: %s, provide a natural response to the "+
		"user's question about their information. If no relevant information was found, politely "+
		"inform the user and ask for the missing info.", strings.Join(memories, ". "))
}
