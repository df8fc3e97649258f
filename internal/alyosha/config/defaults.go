package config

// Default returns the built-in configuration. The persona, style table,
// vocabulary lists and thresholds target a Russian-speaking companion bot;
// deployments can overlay any of them from a YAML file via Load.
func Default() *Config {
	return &Config{
		Persona: "Ты человек по имени Алексей. Говори живо, шути, задавай встречные вопросы.",

		AutoStyle:     true,
		DefaultStyle:  "INFORMAL",
		FallbackStyle: "INFORMAL",

		Styles: map[string]StyleDef{
			"TECHNICAL": {
				Axis: AxisContext, Temperature: 0.3, MaxTokens: 500,
				Prompt: "Чёткий структурированный ответ с профессиональной терминологией 📊",
			},
			"CREATIVE": {
				Axis: AxisContext, Temperature: 0.9, MaxTokens: 1000,
				Prompt: "Креативный ответ с метафорами и нестандартными идеями 🎨",
			},
			"FRIENDLY": {
				Axis: AxisContext, Temperature: 0.7, MaxTokens: 700,
				Prompt: "Неформальный ответ со сленгом и юмором 👫",
			},
			"ROMANTIC": {
				Axis: AxisContext, Temperature: 0.8, MaxTokens: 800,
				Prompt: "Эмоциональный ответ с лирическими образами 💖",
			},
			"ASSERTIVE": {
				Axis: AxisInteraction, Temperature: 0.5, MaxTokens: 600,
				Prompt: "Уважительный и прямой стиль общения 🤝",
			},
			"PASSIVE": {
				Axis: AxisInteraction, Temperature: 0.6, MaxTokens: 400,
				Prompt: "Нейтральный ответ без выраженной позиции 😐",
			},
			"EMOTIONAL": {
				Axis: AxisEmotion, Temperature: 0.85, MaxTokens: 750,
				Prompt: "Эмоционально окрашенный ответ с эмодзи 😊",
			},
			"RATIONAL": {
				Axis: AxisEmotion, Temperature: 0.4, MaxTokens: 500,
				Prompt: "Логичный ответ с фактами и аргументами 📈",
			},
			"FORMAL": {
				Axis: AxisFormality, Temperature: 0.4, MaxTokens: 400,
				Prompt: "Официальный стиль с соблюдением правил 📄",
			},
			"INFORMAL": {
				Axis: AxisFormality, Temperature: 0.7, MaxTokens: 600,
				Prompt: "Разговорный стиль с простыми конструкциями 💬",
			},
			"FRIENDLY_ASSERTIVE": {
				Temperature: 0.6, MaxTokens: 650,
				Prompt: "Дружелюбный и уверенный стиль общения 😊🤝",
			},
			"HUMAN_LIKE": {
				Temperature: 0.75, MaxTokens: 800,
				Prompt: "Общайся как обычный человек по имени Алексей: используй междометия, эмоции, личный опыт. Иногда задавай встречные вопросы.",
			},
		},

		StyleRules: map[string][]string{
			"TECHNICAL": {"технич", "настройк", "параметр", "ошибк", "логи", "api"},
			"CREATIVE":  {"придумай", "историю", "креатив", "вообрази", "творчеств"},
			"ROMANTIC":  {"любов", "сердце", "чувств", "роман", "мечт"},
			"PASSIVE":   {"не знаю", "без разницы", "решай сам", "как скажешь"},
			"ASSERTIVE": {"мнение", "позици", "согласен", "уважен", "конструктив"},
			"FORMAL":    {"уважаем", "прошу", "заявка", "документ", "официал"},
		},

		Emotions: []string{
			"радость", "интерес", "любовь", "благодарность", "надежда",
			"гнев", "страх", "грусть", "стыд", "ревность",
			"разочарование", "удивление", "смущение", "нейтральный",
		},

		EmotionHints: map[string]string{
			"радость": "Будь воодушевлён 😊",
			"грусть":  "Тон сочувственный 🙁",
			"гнев":    "Спокойно и конструктивно",
			"страх":   "Поддержи собеседника",
		},

		NeutralEmotion: "нейтральный",

		IntentPrompt: `Определи намерение. Возможные значения:
  • weather_request – пользователь явно просит факт или прогноз
  • weather_talk    – просто упоминает/комментирует погоду
  • date_request    – просит назвать дату или день недели
  • date_talk       – упоминает дату/день без запроса
  • time_request    – спрашивает точное время
  • time_talk       – говорит о времени без запроса
  • general_chat
Ответ ровно одним словом.`,

		Apology: "Упс, что-то сломалось 🙃",

		History: HistoryConfig{
			Window: 5,
		},

		Memory: MemoryConfig{
			MinIndexLen:    15,
			MinQueryLen:    8,
			ScanCap:        1000,
			RelevanceFloor: 0.25,
			TopK:           5,
		},

		HumanTouch: HumanTouchConfig{
			Probability: 0.25,
			Fillers: []string{
				"Хмм…", "Кстати,", "Если честно,", "Знаешь,", "По правде говоря,",
			},
		},

		Vocabulary: VocabularyConfig{
			Weather: []string{
				"погода", "погод", "прогноз", "дождь", "снег", "солнце",
				"температура", "ветер", "осадки", "шторм", "гроза",
			},
			WeatherAdjectives: []string{"тепл", "холод", "жарк", "пасмурн", "солне"},
			DaysOfWeek: []string{
				"понедельник", "вторник", "среда", "четверг",
				"пятниц", "суббот", "воскресен",
			},
			TimesOfDay: []string{"утро", "вечер", "полдень", "ночь"},
			Explicit: []string{
				"покажи", "выведи", "скажи", "дай", "расскажи", "сколько", "какая",
			},
		},

		Weather: WeatherConfig{
			DefaultCity: "Saint Petersburg",
			CityAliases: map[string]string{
				"питер":  "Saint Petersburg",
				"спб":    "Saint Petersburg",
				"мск":    "Moscow",
				"москва": "Moscow",
				"нск":    "Novosibirsk",
			},
		},
	}
}
