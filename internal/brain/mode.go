package brain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ModeID names a behavioral mode.
type ModeID string

const (
	// ModeHome is the default home-automation mode.
	ModeHome ModeID = "home"
	// ModeAnime is the confirmation-sensitive watchlist mode.
	ModeAnime ModeID = "anime"
)

// Mode is a behavioral configuration: the system instruction shown to
// the model and the tool subset it may call. Exactly one mode is active
// per turn, recomputed every turn.
type Mode struct {
	ID          ModeID
	Instruction string
	Tools       []string

	// ToolOutputWins makes the user-visible reply exactly the tool
	// output whenever a tool ran, discarding the model's own narrative.
	// Device-state text must not be paraphrased by the model.
	ToolOutputWins bool
}

const promptBase = "Tu es Enola, une IA domotique sur Discord.\n" +
	"Tu es efficace, concise, et tu réponds en français.\n" +
	"Si une action est demandée, utilise les tools disponibles.\n" +
	"Si l'utilisateur demande un truc non supporté, dis-le et propose ce que tu peux faire.\n"

const promptHome = promptBase +
	"Règle: si tu utilises un tool, ta réponse finale doit être uniquement le retour du tool.\n"

const promptAnime = "Tu es Enola, assistante de suivi d'animés.\n" +
	"Tu réponds en français, court.\n" +
	"Règle stricte ajout: si l'utilisateur veut ajouter un animé, tu dois d'abord appeler recherche_anime, " +
	"afficher le titre + l'URL d'image (texte brut), puis attendre une confirmation explicite " +
	"(ex: 'confirme <id>'). Ensuite seulement tu peux appeler ajouter_anime_confirme.\n" +
	"Garde tout le reste dans gerer_watchlist.\n" +
	"Ne parle pas de domotique/agenda ici.\n"

// AnimeTools is the tool subset owned by the anime mode; every other
// registered tool belongs to the home mode.
var AnimeTools = []string{"recherche_anime", "ajouter_anime_confirme", "gerer_watchlist"}

// InstructionNow stamps the mode instruction with the current date so
// the model can resolve "demain" and friends.
func (m Mode) InstructionNow(now time.Time) string {
	return m.Instruction + fmt.Sprintf("\nDate: %s (Europe/Paris).", now.Format("Monday 02/01/2006 15:04"))
}

// Classifier routes each utterance to a mode. Decision precedence:
// context carry-over, explicit confirmation pattern, keyword match,
// then the default mode.
type Classifier struct {
	home  Mode
	anime Mode
}

// NewClassifier builds the classifier with the two built-in modes. The
// home tool list is everything registered minus AnimeTools; callers
// pass it in so the classifier stays decoupled from the registry.
func NewClassifier(homeTools []string) *Classifier {
	return &Classifier{
		home: Mode{
			ID:             ModeHome,
			Instruction:    promptHome,
			Tools:          homeTools,
			ToolOutputWins: true,
		},
		anime: Mode{
			ID:          ModeAnime,
			Instruction: promptAnime,
			Tools:       AnimeTools,
		},
	}
}

var (
	confirmRe = regexp.MustCompile(`\bconfirme\s+\d+\b`)
	wlRe      = regexp.MustCompile(`\bwl\b`)
)

// animeKeywords routes an utterance to the anime mode when no stronger
// signal applies.
var animeKeywords = []string{
	"anime", "animé", "anilist", "watchlist", "liste d'anim", "liste d’an",
	"épisode", "episode", "saison", "crunchyroll",
}

// contextMarkers signal that the previous step belonged to the anime
// flow: either a pending confirmation from recherche_anime or an anime
// discussion in flight.
func animeContext(content string) bool {
	if strings.Contains(content, "ID:") && strings.Contains(content, "Demande confirmation") {
		return true
	}
	return strings.Contains(content, "AniList") ||
		strings.Contains(content, "Watchlist") ||
		strings.Contains(content, "Crunchyroll")
}

// Classify picks the mode for the current utterance. The context scan
// walks backward over assistant and tool turns and stops at the first
// user turn: only the immediately preceding exchange may carry the mode
// over, a one-word "oui" must not resurrect older context.
func (c *Classifier) Classify(text string, tail History) Mode {
	for i := len(tail) - 1; i >= 0; i-- {
		t := tail[i]
		if t.Role == RoleUser {
			break
		}
		if (t.Role == RoleAssistant || t.Role == RoleTool) && t.Content != "" && animeContext(t.Content) {
			return c.anime
		}
	}

	lower := strings.ToLower(text)
	if confirmRe.MatchString(lower) || wlRe.MatchString(lower) {
		return c.anime
	}
	for _, kw := range animeKeywords {
		if strings.Contains(lower, kw) {
			return c.anime
		}
	}
	return c.home
}

// Mode returns a mode by id, defaulting to home.
func (c *Classifier) Mode(id ModeID) Mode {
	if id == ModeAnime {
		return c.anime
	}
	return c.home
}
