package usecase

// Fixed user-visible reply texts. These strings are the bot's behavioral
// contract with its (Spanish-speaking) users; change them only in lockstep
// with the tests.
const (
	replyNoCredentials = "⚠️ No se configuraron credenciales para Traccar."

	// The location handler historically words "device not found" differently
	// from speed/status; both variants are preserved.
	replyDeviceNotFoundLocation = "No pude encontrar un dispositivo que coincida con tu mensaje."
	replyDeviceNotFound         = "No encontré un dispositivo que coincida con tu mensaje."

	replyLocationError = "Error al obtener la ubicación del dispositivo."
	replySpeedError    = "Error al obtener la velocidad del dispositivo."
	replyStatusError   = "Error al obtener el estado del dispositivo."
	replyListError     = "Ocurrió un error al obtener la lista de dispositivos."

	replyNoDevices = "No se encontraron dispositivos registrados."

	replyAskError = "Lo siento, no pude recuperar esa información ahora."

	replyIgnore = "Lo siento, no entendí tu consulta. Puedes preguntarme por la ubicación, velocidad o estado de un dispositivo."

	// Returned when classification itself fails; no handler runs.
	replyTurnFailed = "⚠️ Ha ocurrido un error inesperado. Por favor intenta más tarde."

	// Substituted if a handler terminates without appending a reply.
	replyPlaceholder = "⚠️ Sin respuesta."

	attrUnavailable = "No disponible"
)
