package i18n

import (
	"fmt"
	"strings"
)

// Catalog maps message keys to text per language.
type Catalog map[Language]map[string]string

// Translate returns the text for key in lang. Missing entries fall back to
// German, then to the key itself. Placeholders like {count} are replaced
// from params.
func (c Catalog) Translate(key string, lang Language, params map[string]any) string {
	text, ok := c[lang][key]
	if !ok {
		text, ok = c[German][key]
	}
	if !ok {
		text = key
	}
	for k, v := range params {
		text = strings.ReplaceAll(text, "{"+k+"}", fmt.Sprint(v))
	}
	return text
}

// Messages returns every key of lang with German fallbacks filled in.
func (c Catalog) Messages(lang Language) map[string]string {
	out := make(map[string]string, len(c[German]))
	for k, v := range c[German] {
		out[k] = v
	}
	for k, v := range c[lang] {
		out[k] = v
	}
	return out
}

// Widget holds the UI strings of the public widget.
var Widget = Catalog{
	German: {
		"search.placeholder":     "PLZ, Ort oder Name suchen",
		"filter.reset":           "Filter zurücksetzen",
		"radius.label":           "Umkreis",
		"radius.all":             "Alle",
		"geolocation.button":     "Meinen Standort verwenden",
		"results.count":          "{count} Stützpunkte",
		"results.count.one":      "1 Stützpunkt",
		"results.empty":          "Keine Stützpunkte gefunden",
		"results.empty.hint":     "Versuchen Sie einen grösseren Umkreis oder andere Filter.",
		"pagination.loadMore":    "Weitere anzeigen ({remaining})",
		"card.closed":            "Vorübergehend geschlossen",
		"card.emergency":         "Notfallnummer",
		"card.hours.24h":         "24 Stunden geöffnet",
		"card.hours.daytime":     "Geöffnet {from} bis {to}",
		"card.distance":          "{distance} km entfernt",
		"route.button":           "Route zum nächsten Stützpunkt",
		"route.nearest":          "Nächster Stützpunkt: {name}",
		"route.distance":         "Distanz: {distance} km",
		"route.duration":         "Fahrzeit: {duration} min",
		"route.error":            "Die Route konnte nicht berechnet werden.",
		"route.noLocation":       "Ihr Standort ist nicht verfügbar.",
		"route.noTarget":         "Kein aktiver Stützpunkt gefunden.",
		"route.openGoogle":       "In Google Maps öffnen",
		"route.openApple":        "In Apple Karten öffnen",
		"language.switcher":      "Sprache",
		"services.filter.header": "Leistungen",
	},
	French: {
		"search.placeholder":     "Rechercher NPA, lieu ou nom",
		"filter.reset":           "Réinitialiser les filtres",
		"radius.label":           "Rayon",
		"radius.all":             "Tous",
		"geolocation.button":     "Utiliser ma position",
		"results.count":          "{count} points de service",
		"results.count.one":      "1 point de service",
		"results.empty":          "Aucun point de service trouvé",
		"results.empty.hint":     "Essayez un rayon plus grand ou d'autres filtres.",
		"pagination.loadMore":    "Afficher plus ({remaining})",
		"card.closed":            "Temporairement fermé",
		"card.emergency":         "Numéro d'urgence",
		"card.hours.24h":         "Ouvert 24 heures sur 24",
		"card.hours.daytime":     "Ouvert de {from} à {to}",
		"card.distance":          "À {distance} km",
		"route.button":           "Itinéraire vers le point le plus proche",
		"route.nearest":          "Point le plus proche : {name}",
		"route.distance":         "Distance : {distance} km",
		"route.duration":         "Durée : {duration} min",
		"route.error":            "L'itinéraire n'a pas pu être calculé.",
		"route.noLocation":       "Votre position n'est pas disponible.",
		"route.noTarget":         "Aucun point de service actif trouvé.",
		"route.openGoogle":       "Ouvrir dans Google Maps",
		"route.openApple":        "Ouvrir dans Apple Plans",
		"language.switcher":      "Langue",
		"services.filter.header": "Prestations",
	},
	Italian: {
		"search.placeholder":     "Cerca NPA, località o nome",
		"filter.reset":           "Reimposta filtri",
		"radius.label":           "Raggio",
		"radius.all":             "Tutti",
		"geolocation.button":     "Usa la mia posizione",
		"results.count":          "{count} punti di servizio",
		"results.count.one":      "1 punto di servizio",
		"results.empty":          "Nessun punto di servizio trovato",
		"results.empty.hint":     "Prova un raggio più ampio o altri filtri.",
		"pagination.loadMore":    "Mostra altri ({remaining})",
		"card.closed":            "Temporaneamente chiuso",
		"card.emergency":         "Numero d'emergenza",
		"card.hours.24h":         "Aperto 24 ore su 24",
		"card.hours.daytime":     "Aperto dalle {from} alle {to}",
		"card.distance":          "A {distance} km",
		"route.button":           "Percorso verso il punto più vicino",
		"route.nearest":          "Punto più vicino: {name}",
		"route.distance":         "Distanza: {distance} km",
		"route.duration":         "Durata: {duration} min",
		"route.error":            "Impossibile calcolare il percorso.",
		"route.noLocation":       "La tua posizione non è disponibile.",
		"route.noTarget":         "Nessun punto di servizio attivo trovato.",
		"route.openGoogle":       "Apri in Google Maps",
		"route.openApple":        "Apri in Mappe di Apple",
		"language.switcher":      "Lingua",
		"services.filter.header": "Servizi",
	},
}
