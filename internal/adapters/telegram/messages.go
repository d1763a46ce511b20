package telegram

const (
	welcomeText = "👋 Bonjour ! Je suis votre assistant virtuel spécialisé dans le Code du Travail français.\n\n" +
		"💼 Posez-moi vos questions sur le droit du travail, les congés, les contrats, " +
		"les procédures de licenciement, et bien plus encore !\n\n" +
		"📝 *Commandes disponibles:*\n" +
		"/start - Afficher ce message\n" +
		"/help - Aide et informations\n" +
		"/status - État du système\n\n" +
		"✨ Envoyez-moi simplement votre question et je vous répondrai !"

	helpText = "🆘 *Aide - Bot Code du Travail*\n\n" +
		"Ce bot utilise un modèle de langage fine-tuné spécialement pour répondre " +
		"aux questions sur le Code du Travail français.\n\n" +
		"📋 *Comment utiliser le bot:*\n" +
		"• Posez vos questions directement\n" +
		"• Soyez précis dans vos demandes\n" +
		"• Le bot peut traiter des sujets comme:\n" +
		"  - Contrats de travail\n" +
		"  - Congés et RTT\n" +
		"  - Licenciements\n" +
		"  - Temps de travail\n" +
		"  - Salaires et primes\n" +
		"  - Relations sociales\n\n" +
		"⚠️ *Avertissement:* Les réponses sont fournies à titre informatif. " +
		"Pour des conseils juridiques précis, consultez un avocat spécialisé."

	unknownCommandText = "Commande inconnue. Tapez /help pour voir les commandes disponibles."
	unauthorizedText   = "⛔ Accès non autorisé."
	noAnswerText       = "Je n'ai pas pu générer une réponse appropriée à votre question. Pourriez-vous la reformuler ?"
	generationErrText  = "❌ Désolé, une erreur s'est produite lors de la génération de la réponse. Veuillez réessayer."
	sendErrText        = "❌ Désolé, une erreur s'est produite lors de l'envoi de la réponse."
	unavailable        = "indisponible"
)
