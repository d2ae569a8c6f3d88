package model

import (
	"sort"
)

// 规则中直接引用的活动名称
const (
	ActivityReflection       = "Reflection"
	ActivitySuperTroop       = "Super Troop"
	ActivityDelta            = "Delta"
	ActivityCampsiteFreeTime = "Campsite Free Time"
	ActivityClimbingTower    = "Climbing Tower"
	ActivityArchery          = "Archery"
	ActivitySailing          = "Sailing"
)

// Pair 同日活动对
type Pair [2]string

// Has 是否由 a、b 两个活动组成（不分顺序）
func (p Pair) Has(a, b string) bool {
	return (p[0] == a && p[1] == b) || (p[0] == b && p[1] == a)
}

// Catalog 活动目录
type Catalog struct {
	Activities    []*Activity    `json:"activities" yaml:"activities" validate:"required,dive"`
	AreaCapacity  map[string]int `json:"area_capacity,omitempty" yaml:"area_capacity,omitempty"`
	FillPriority  []string       `json:"fill_priority" yaml:"fill_priority"`
	HardPairs     []Pair         `json:"hard_pairs,omitempty" yaml:"hard_pairs,omitempty"`
	SoftPairs     []Pair         `json:"soft_pairs,omitempty" yaml:"soft_pairs,omitempty"`
	NeutralFiller string         `json:"neutral_filler" yaml:"neutral_filler"`

	byName map[string]*Activity
	byArea map[string][]*Activity
}

// NewCatalog 创建活动目录并建立索引
func NewCatalog(activities []*Activity) *Catalog {
	c := &Catalog{
		Activities:    activities,
		AreaCapacity:  make(map[string]int),
		NeutralFiller: ActivityCampsiteFreeTime,
	}
	c.Reindex()
	return c
}

// Reindex 重建名称和区域索引（修改 Activities 后调用）
func (c *Catalog) Reindex() {
	c.byName = make(map[string]*Activity, len(c.Activities))
	c.byArea = make(map[string][]*Activity)
	for _, a := range c.Activities {
		c.byName[a.Name] = a
		if a.Area != "" {
			c.byArea[a.Area] = append(c.byArea[a.Area], a)
		}
	}
	if c.AreaCapacity == nil {
		c.AreaCapacity = make(map[string]int)
	}
}

// Get 按名称查找活动
func (c *Catalog) Get(name string) (*Activity, bool) {
	if c.byName == nil {
		c.Reindex()
	}
	a, ok := c.byName[name]
	return a, ok
}

// MustGet 按名称查找活动，不存在时 panic（仅用于内置目录）
func (c *Catalog) MustGet(name string) *Activity {
	a, ok := c.Get(name)
	if !ok {
		panic("unknown activity: " + name)
	}
	return a
}

// Areas 返回所有独占区域名称（按名称排序）
func (c *Catalog) Areas() []string {
	if c.byArea == nil {
		c.Reindex()
	}
	areas := make([]string, 0, len(c.byArea))
	for a := range c.byArea {
		areas = append(areas, a)
	}
	sort.Strings(areas)
	return areas
}

// AreaActivities 返回区域内的活动
func (c *Catalog) AreaActivities(area string) []*Activity {
	if c.byArea == nil {
		c.Reindex()
	}
	return c.byArea[area]
}

// CapacityOf 区域每时段容量，默认1
func (c *Catalog) CapacityOf(area string) int {
	if n, ok := c.AreaCapacity[area]; ok && n > 0 {
		return n
	}
	return 1
}

// IsHardPair 两个活动是否禁止同一天出现在同一支队伍
func (c *Catalog) IsHardPair(a, b string) bool {
	for _, p := range c.HardPairs {
		if p.Has(a, b) {
			return true
		}
	}
	return false
}

// IsSoftPair 两个活动是否应尽量避免同一天出现
func (c *Catalog) IsSoftPair(a, b string) bool {
	for _, p := range c.SoftPairs {
		if p.Has(a, b) {
			return true
		}
	}
	return false
}

// Mandatory 返回所有必排活动（目录顺序）
func (c *Catalog) Mandatory() []*Activity {
	var result []*Activity
	for _, a := range c.Activities {
		if a.IsMandatory() {
			result = append(result, a)
		}
	}
	return result
}

// Clone 深拷贝目录，便于在单次运行中调整参数
func (c *Catalog) Clone() *Catalog {
	acts := make([]*Activity, len(c.Activities))
	for i, a := range c.Activities {
		cp := *a
		cp.Tags = append([]Tag(nil), a.Tags...)
		cp.Conflicts = append([]string(nil), a.Conflicts...)
		if a.FixedDay != nil {
			d := *a.FixedDay
			cp.FixedDay = &d
		}
		acts[i] = &cp
	}
	out := &Catalog{
		Activities:    acts,
		AreaCapacity:  make(map[string]int, len(c.AreaCapacity)),
		FillPriority:  append([]string(nil), c.FillPriority...),
		HardPairs:     append([]Pair(nil), c.HardPairs...),
		SoftPairs:     append([]Pair(nil), c.SoftPairs...),
		NeutralFiller: c.NeutralFiller,
	}
	for k, v := range c.AreaCapacity {
		out.AreaCapacity[k] = v
	}
	out.Reindex()
	return out
}

func fixed(d Day) *Day { return &d }

func activity(name string, span float64, zone Zone, area string, staff int, capacity CapacityKind, tags ...Tag) *Activity {
	return &Activity{
		Name:     name,
		Span:     span,
		Zone:     zone,
		Area:     area,
		Capacity: CapacityRule{Kind: capacity},
		Staff:    staff,
		Tags:     tags,
	}
}

// DefaultCatalog 返回营地默认活动目录
func DefaultCatalog() *Catalog {
	const (
		excl = CapacityExclusive
		conc = CapacityConcurrent
		shrd = CapacityShared
		flt  = CapacityFleet
	)

	acts := []*Activity{
		// 沙滩（无人值守）
		activity("9 Square", 1, ZoneBeach, "", 0, excl),
		activity("Gaga Ball", 1, ZoneBeach, "", 0, excl),
		activity("Fishing", 1, ZoneBeach, "Fishing", 0, excl),
		activity("Sauna", 1, ZoneBeach, "Sauna", 0, excl, TagWet),
		activity("Shower House", 1, ZoneBeach, "Shower House", 0, excl),
		activity("Trading Post", 1, ZoneBeach, "Trading Post", 0, excl),

		// 沙滩（工作人员）
		activity("Aqua Trampoline", 1, ZoneBeach, "Aqua Trampoline", 2, shrd, TagWet, TagBeachSlot, TagBeachStaff),
		activity("Troop Canoe", 1, ZoneBeach, "Troop Canoe", 2, flt, TagWet, TagBeachSlot, TagBeachStaff, TagFleet),
		activity("Troop Kayak", 1, ZoneBeach, "", 2, excl, TagWet, TagBeachSlot, TagBeachStaff),
		activity("Canoe Snorkel", 2, ZoneBeach, "Canoe Snorkel", 3, flt, TagWet, TagBeachSlot, TagBeachStaff, TagFleet),
		activity("Float for Floats", 2, ZoneBeach, "Float for Floats", 3, flt, TagWet, TagBeachSlot, TagBeachStaff, TagFleet),
		activity("Greased Watermelon", 1, ZoneBeach, "Greased Watermelon", 2, excl, TagWet, TagBeachSlot, TagBeachStaff),
		activity("Underwater Obstacle Course", 1, ZoneBeach, "", 2, excl, TagWet, TagBeachSlot, TagBeachStaff),
		activity("Troop Swim", 1, ZoneBeach, "Troop Swim", 2, excl, TagWet, TagBeachSlot, TagBeachStaff),
		activity("Water Polo", 1, ZoneBeach, "Water Polo", 2, shrd, TagWet, TagBeachSlot, TagBeachStaff),
		activity("Nature Canoe", 1, ZoneBeach, "Nature Canoe", 2, flt, TagWet, TagBeachSlot, TagBeachStaff, TagFleet),
		activity(ActivitySailing, 1.5, ZoneBeach, "Sailing", 1, excl, TagWet, TagBeachStaff),

		// 自然中心
		activity("Dr. DNA", 1, ZoneNature, "Nature Center", 1, excl),
		activity("Loon Lore", 1, ZoneNature, "Nature Center", 1, excl),
		activity("Ecosystem in a Jar", 1, ZoneNature, "", 1, excl),
		activity("Nature Salad", 1, ZoneNature, "", 1, excl),
		activity("Nature Bingo", 1, ZoneNature, "", 1, excl),

		// 手工
		activity("Hemp Craft", 1, ZoneHandicrafts, "Handicrafts", 1, excl),
		activity("Monkey's Fist", 1, ZoneHandicrafts, "Handicrafts", 1, excl),
		activity("Tie Dye", 1, ZoneHandicrafts, "Handicrafts", 1, excl),
		activity("Woggle Neckerchief Slide", 1, ZoneHandicrafts, "Handicrafts", 1, excl),

		// 射击与射箭
		activity(ActivityArchery, 1, ZoneRifleRange, "Archery", 1, excl, TagAccuracy, TagStaffCluster, TagAvoidFriday),
		activity("Troop Rifle", 1, ZoneRifleRange, "Rifle Range", 1, excl, TagAccuracy, TagStaffCluster),
		activity("Troop Shotgun", 1, ZoneRifleRange, "Rifle Range", 1, excl, TagAccuracy, TagStaffCluster),

		// 攀岩塔
		activity(ActivityClimbingTower, 1, ZoneTower, "Tower", 2, excl, TagTowerODS, TagStaffCluster),

		// 户外技能
		activity("Chopped!", 1, ZoneOutdoorSkills, "Outdoor Skills", 1, excl, TagTowerODS, TagStaffCluster),
		activity("GPS & Geocaching", 1, ZoneOutdoorSkills, "Outdoor Skills", 1, excl, TagTowerODS, TagStaffCluster),
		activity("Knots and Lashings", 1, ZoneOutdoorSkills, "Outdoor Skills", 1, excl, TagTowerODS, TagStaffCluster),
		activity("Orienteering", 1, ZoneOutdoorSkills, "Outdoor Skills", 1, excl, TagTowerODS, TagStaffCluster),
		activity("Ultimate Survivor", 1, ZoneOutdoorSkills, "Outdoor Skills", 1, excl, TagTowerODS, TagStaffCluster),
		activity("What's Cooking", 1, ZoneOutdoorSkills, "Outdoor Skills", 1, excl, TagTowerODS, TagStaffCluster),

		// 专员活动
		activity(ActivityDelta, 1, ZoneDelta, "Delta", 1, excl),
		activity(ActivitySuperTroop, 1, ZoneBeach, "Super Troop", 1, excl, TagMandatory),

		// 营外
		activity("Back of the Moon", 3, ZoneOffCamp, "", 1, conc, TagThreeHour),
		activity("Disc Golf", 1, ZoneOffCamp, "Disc Golf", 0, excl),
		activity("Itasca State Park", 3, ZoneOffCamp, "", 0, conc, TagThreeHour),
		activity("Tamarac Wildlife Refuge", 3, ZoneOffCamp, "", 0, conc, TagThreeHour),
		activity("History Center", 1, ZoneOffCamp, "History Center", 0, excl),

		// 营地
		activity(ActivityCampsiteFreeTime, 1, ZoneCampsite, "", 0, conc, TagConcurrent, TagFiller),
		activity(ActivityReflection, 1, ZoneCampsite, "", 0, conc, TagConcurrent, TagMandatory),
	}

	c := NewCatalog(acts)

	c.MustGet("Aqua Trampoline").Capacity = CapacityRule{Kind: CapacityShared, MaxTroops: 2, MaxTroopSize: 16}
	c.MustGet("Water Polo").Capacity = CapacityRule{Kind: CapacityShared, MaxTroops: 2}

	tower := c.MustGet(ActivityClimbingTower)
	tower.ExtendedSpan = 2
	tower.ExtendedAbove = 15

	c.MustGet(ActivityReflection).FixedDay = fixed(Friday)

	c.MustGet("Underwater Obstacle Course").Conflicts = []string{"Troop Swim"}
	c.MustGet("Troop Swim").Conflicts = []string{"Underwater Obstacle Course"}
	c.MustGet("Troop Rifle").Conflicts = []string{"Troop Shotgun"}
	c.MustGet("Troop Shotgun").Conflicts = []string{"Troop Rifle"}

	c.FillPriority = []string{
		ActivitySuperTroop, "Aqua Trampoline", ActivityArchery, "Water Polo", "Troop Rifle",
		"Gaga Ball", "9 Square", "Troop Swim", ActivitySailing, "Trading Post",
		"GPS & Geocaching", "Hemp Craft", "Dr. DNA", "Loon Lore", "Fishing",
		ActivityCampsiteFreeTime,
	}

	canoes := []string{"Troop Canoe", "Canoe Snorkel", "Float for Floats", "Nature Canoe"}
	c.HardPairs = []Pair{
		{"Trading Post", ActivityCampsiteFreeTime},
		{"Trading Post", "Shower House"},
		{"Aqua Trampoline", "Water Polo"},
		{"Aqua Trampoline", "Greased Watermelon"},
		{"Water Polo", "Greased Watermelon"},
	}
	for i := 0; i < len(canoes); i++ {
		for j := i + 1; j < len(canoes); j++ {
			c.HardPairs = append(c.HardPairs, Pair{canoes[i], canoes[j]})
		}
	}
	c.SoftPairs = []Pair{
		{"Fishing", "Trading Post"},
		{"Fishing", "Shower House"},
		{"Disc Golf", "Trading Post"},
		{"Disc Golf", "Shower House"},
	}

	return c
}
