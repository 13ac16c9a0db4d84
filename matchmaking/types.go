package matchmaking

// OnlinePlayMode is the numeric play mode carried on the wire.
type OnlinePlayMode uint8

const (
	ModeRanked OnlinePlayMode = iota
	ModeUnranked
	ModeDirect
	ModeTeams
)

// Valid reports whether the numeric code maps to a known mode.
func (m OnlinePlayMode) Valid() bool {
	return m <= ModeTeams
}

func (m OnlinePlayMode) String() string {
	switch m {
	case ModeRanked:
		return "ranked"
	case ModeUnranked:
		return "unranked"
	case ModeDirect:
		return "direct"
	case ModeTeams:
		return "teams"
	default:
		return "unknown"
	}
}

// ControllerPort is one of the four physical controller slots.
type ControllerPort uint8

const (
	PortOne ControllerPort = iota + 1
	PortTwo
	PortThree
	PortFour
)

// PortsFor returns the controller port pool for a mode. Teams games use all
// four slots, every other mode is a 1v1 on slots one and two.
func PortsFor(mode OnlinePlayMode) []ControllerPort {
	if mode == ModeTeams {
		return []ControllerPort{PortOne, PortTwo, PortThree, PortFour}
	}
	return []ControllerPort{PortOne, PortTwo}
}

// Stage is a legal netplay arena, identified by the game's native stage id.
type Stage uint8

const (
	StageFountainOfDreams Stage = 0x2
	StagePokemonStadium   Stage = 0x3
	StageYoshisStory      Stage = 0x8
	StageDreamLand        Stage = 0x1C
	StageBattlefield      Stage = 0x1F
	StageFinalDestination Stage = 0x20
)

// AllowedStages returns the stage pool for a mode. Fountain of Dreams is
// excluded from Teams because its platforms break with four players.
func AllowedStages(mode OnlinePlayMode) []Stage {
	stages := []Stage{
		StagePokemonStadium,
		StageYoshisStory,
		StageDreamLand,
		StageBattlefield,
		StageFinalDestination,
	}
	if mode != ModeTeams {
		stages = append(stages, StageFountainOfDreams)
	}
	return stages
}
