package model

// GateState is the authentication state of a connected actor
type GateState string

const (
	GateUnverified    GateState = "unverified"
	GateVerifying     GateState = "verifying"
	GateAuthenticated GateState = "authenticated"
	GateExpired       GateState = "expired"
)

// ActionKind classifies an in-session event the host asks the gate about
type ActionKind string

const (
	ActionMove           ActionKind = "move"
	ActionLook           ActionKind = "look" // orientation only
	ActionBlockBreak     ActionKind = "block_break"
	ActionBlockPlace     ActionKind = "block_place"
	ActionInteract       ActionKind = "interact"
	ActionInteractEntity ActionKind = "interact_entity"
	ActionDropItem       ActionKind = "drop_item"
	ActionPickupItem     ActionKind = "pickup_item"
	ActionInventoryOpen  ActionKind = "inventory_open"
	ActionInventoryClick ActionKind = "inventory_click"
	ActionDamageDealt    ActionKind = "damage_dealt"
	ActionDamageTaken    ActionKind = "damage_taken"
	ActionHunger         ActionKind = "hunger"
	ActionChat           ActionKind = "chat"
	ActionCommand        ActionKind = "command"
	ActionLoginCommand   ActionKind = "login_command"
	ActionTeleport       ActionKind = "teleport"      // started by the actor
	ActionHostTeleport   ActionKind = "host_teleport" // started by the host itself
)

// ParseActionKind returns the kind and whether it was recognised
func ParseActionKind(s string) (ActionKind, bool) {
	switch k := ActionKind(s); k {
	case ActionMove, ActionLook, ActionBlockBreak, ActionBlockPlace, ActionInteract,
		ActionInteractEntity, ActionDropItem, ActionPickupItem, ActionInventoryOpen,
		ActionInventoryClick, ActionDamageDealt, ActionDamageTaken, ActionHunger,
		ActionChat, ActionCommand, ActionLoginCommand, ActionTeleport, ActionHostTeleport:
		return k, true
	default:
		return "", false
	}
}
