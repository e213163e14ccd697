package bot

// Menu button labels. The router matches them exactly.
const (
	BtnProfile = "👤 Profile"
	BtnGemini  = "🤖 Gemini AI"
	BtnImages  = "🎨 Images"
	BtnVideo   = "🎬 Video AI"
	BtnAudio   = "🎵 Audio AI"
	BtnHelp    = "❓ Help"

	BtnChat         = "💬 Chat"
	BtnAnalyzeImage = "🔍 Analyze image"

	BtnGenerateImage = "✨ Generate image"
	BtnEditImage     = "🪄 Edit image"

	BtnAnalyzeVideo = "🎞 Analyze video"
	BtnTextToVideo  = "📝 Text to video"
	BtnImageToVideo = "📸 Image to video"

	BtnTranscribe   = "🎙 Transcribe"
	BtnAnalyzeAudio = "🎧 Analyze audio"

	BtnBack     = "⬅️ Back"
	BtnMainMenu = "🏠 Main menu"
)

// MainKeyboard is shown to idle users.
func MainKeyboard() [][]string {
	return [][]string{
		{BtnGemini, BtnImages},
		{BtnVideo, BtnAudio},
		{BtnProfile, BtnHelp},
	}
}

// FlowKeyboard is shown while a mode waits for input.
func FlowKeyboard() [][]string {
	return [][]string{{BtnBack, BtnMainMenu}}
}

func geminiKeyboard() [][]string {
	return [][]string{{BtnChat, BtnAnalyzeImage}, {BtnBack}}
}

func imagesKeyboard() [][]string {
	return [][]string{{BtnGenerateImage, BtnEditImage}, {BtnBack}}
}

func videoKeyboard() [][]string {
	return [][]string{{BtnTextToVideo, BtnImageToVideo}, {BtnAnalyzeVideo}, {BtnBack}}
}

func audioKeyboard() [][]string {
	return [][]string{{BtnTranscribe, BtnAnalyzeAudio}, {BtnBack}}
}
