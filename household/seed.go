package household

// Built-in catalog written by Initialize into an empty store and returned by
// DefaultState when the store cannot be read at all. Ids are fixed so that a
// snapshot produced from the fallback and one read from a seeded store agree.

func defaultUsers() []User {
	return []User{
		{ID: "parent_1", Name: "爸爸/媽媽", Role: RoleParent, Avatar: "👑"},
		{ID: "child_1", Name: "丞鈞", Role: RoleChild, Avatar: "👦"},
		{ID: "child_2", Name: "佑佑", Role: RoleChild, Avatar: "👶"},
	}
}

func defaultScoreItems() []ScoreItem {
	return []ScoreItem{
		{ID: "item_1", Label: "做家事", Points: 10, Type: ScorePositive, Icon: "🧹"},
		{ID: "item_2", Label: "成績優異", Points: 20, Type: ScorePositive, Icon: "💯"},
		{ID: "item_3", Label: "互相幫忙", Points: 10, Type: ScorePositive, Icon: "🤝"},
		{ID: "item_4", Label: "早睡早起", Points: 5, Type: ScorePositive, Icon: "⏰"},
		{ID: "item_5", Label: "未整理書包", Points: 10, Type: ScoreNegative, Icon: "🎒"},
		{ID: "item_6", Label: "刻意吵架", Points: 20, Type: ScoreNegative, Icon: "💢"},
		{ID: "item_7", Label: "欺負對方", Points: 30, Type: ScoreNegative, Icon: "😈"},
		{ID: "item_8", Label: "挑食", Points: 5, Type: ScoreNegative, Icon: "🥦"},
	}
}

func defaultRewardItems() []RewardItem {
	return []RewardItem{
		{ID: "reward_1", Label: "玩 Switch (30分)", Points: 50, Icon: "🎮"},
		{ID: "reward_2", Label: "看電視 (30分)", Points: 30, Icon: "📺"},
		{ID: "reward_3", Label: "吃零食", Points: 20, Icon: "🍪"},
	}
}

// DefaultCatalog returns the seed catalog: users, score items and reward items,
// with empty records and messages. Every call returns fresh slices.
func DefaultCatalog() AppState {
	return AppState{
		Users:       defaultUsers(),
		ScoreItems:  defaultScoreItems(),
		RewardItems: defaultRewardItems(),
	}.Normalize()
}

// DefaultState is the snapshot substituted when loading fails.
func DefaultState() AppState {
	return DefaultCatalog()
}
