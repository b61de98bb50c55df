package locale

import "golang.org/x/text/language"

// Message keys.
const (
	UnknownLocation  = "unknown_location"
	NoDataForYear    = "no_data_for_year"
	InferenceFailure = "inference_failure"
	NotLoaded        = "not_loaded"
	InvalidCommand   = "invalid_command"
	MalformedCommand = "malformed_command"
	UnknownColumn    = "unknown_column"
	InvalidClasses   = "invalid_classes"
	YearOutOfRange   = "year_out_of_range"
	DuplicateRows    = "duplicate_rows"
	ClassShare       = "class_share"
	PredictedClass   = "predicted_class"
	Percent          = "percent"
	TitleMap         = "title_map"
	TitleHeatmap     = "title_heatmap"
	TitleModel       = "title_model"
	TitleProbability = "title_probability"
	TitleImportance  = "title_importance"
	LabelGeoCode     = "label_geo_code"
	LabelYear        = "label_year"
	LabelColumn      = "label_column"
	ActionPredict    = "action_predict"
)

// Integers other than class labels are passed as strings so the printer does
// not group digits ("2 019").
var translations = map[language.Tag]map[string]string{
	language.French: {
		UnknownLocation:  "Code INSEE non valide.",
		NoDataForYear:    "Aucune donnée pour cette année.",
		InferenceFailure: "La prédiction a échoué. Réessayez plus tard.",
		NotLoaded:        "Les données sont en cours de chargement.",
		InvalidCommand:   "Commande inconnue : %s / %s.",
		MalformedCommand: "Commande mal formée.",
		UnknownColumn:    "Variable inconnue : %s.",
		InvalidClasses:   "Le nombre de classes doit être compris entre 3 et 9.",
		YearOutOfRange:   "Choisissez une année entre %s et %s.",
		DuplicateRows:    "%d lignes correspondent, la première est utilisée.",
		ClassShare:       "Classe %d : %.2f %%",
		PredictedClass:   "Classe prédite : %d",
		Percent:          "%.2f %%",
		TitleMap:         "Carte des communes",
		TitleHeatmap:     "Corrélations",
		TitleModel:       "Modèle prédictif",
		TitleProbability: "Probabilités par classe",
		TitleImportance:  "Importance des variables",
		LabelGeoCode:     "Code INSEE",
		LabelYear:        "Année",
		LabelColumn:      "Variable",
		ActionPredict:    "Prédire",
	},
	language.English: {
		UnknownLocation:  "Invalid INSEE code.",
		NoDataForYear:    "No data for this year.",
		InferenceFailure: "Prediction failed. Please try again later.",
		NotLoaded:        "Data is still loading.",
		InvalidCommand:   "Unknown command: %s / %s.",
		MalformedCommand: "Malformed command.",
		UnknownColumn:    "Unknown variable: %s.",
		InvalidClasses:   "The number of classes must be between 3 and 9.",
		YearOutOfRange:   "Pick a year between %s and %s.",
		DuplicateRows:    "%d rows match, the first one is used.",
		ClassShare:       "Class %d: %.2f%%",
		PredictedClass:   "Predicted class: %d",
		Percent:          "%.2f%%",
		TitleMap:         "Commune map",
		TitleHeatmap:     "Correlations",
		TitleModel:       "Predictive model",
		TitleProbability: "Class probabilities",
		TitleImportance:  "Feature importance",
		LabelGeoCode:     "INSEE code",
		LabelYear:        "Year",
		LabelColumn:      "Variable",
		ActionPredict:    "Predict",
	},
}
