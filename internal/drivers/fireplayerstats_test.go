package drivers

import (
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/Amund211/serverstats/internal/domain"
)

var fireSchema = []string{
	`CREATE TABLE players (account_id INTEGER PRIMARY KEY, steam_id TEXT NOT NULL, nickname TEXT NOT NULL)`,
	`CREATE TABLE servers_stats (
		account_id INTEGER NOT NULL, server_id INTEGER NOT NULL, "rank" INTEGER NOT NULL,
		points INTEGER NOT NULL, kills INTEGER NOT NULL, deaths INTEGER NOT NULL, assists INTEGER NOT NULL,
		round_win INTEGER NOT NULL, round_lose INTEGER NOT NULL, lastconnect INTEGER NOT NULL
	)`,
	`CREATE TABLE weapons_stats (
		account_id INTEGER NOT NULL, server_id INTEGER NOT NULL, weapon TEXT NOT NULL,
		shoots INTEGER NOT NULL, headshots INTEGER NOT NULL,
		hits_head INTEGER NOT NULL, hits_neck INTEGER NOT NULL, hits_chest INTEGER NOT NULL, hits_stomach INTEGER NOT NULL,
		hits_left_arm INTEGER NOT NULL, hits_right_arm INTEGER NOT NULL, hits_left_leg INTEGER NOT NULL, hits_right_leg INTEGER NOT NULL
	)`,
}

type firePlayer struct {
	accountID   int
	steamID     string
	nickname    string
	serverID    int
	rank        int
	points      int
	lastconnect int
}

func insertFirePlayer(t *testing.T, db *sqlx.DB, p firePlayer) {
	t.Helper()

	serverID := p.serverID
	if serverID == 0 {
		serverID = 1
	}

	db.MustExec(`INSERT OR IGNORE INTO players (account_id, steam_id, nickname) VALUES (?, ?, ?)`, p.accountID, p.steamID, p.nickname)
	db.MustExec(
		`INSERT INTO servers_stats (account_id, server_id, "rank", points, kills, deaths, assists, round_win, round_lose, lastconnect) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.accountID, serverID, p.rank, p.points, p.points/10, p.points/20, 3, 4, 5, p.lastconnect,
	)
}

func insertWeapon(t *testing.T, db *sqlx.DB, accountID, serverID int, weapon string, shoots, headshots int, hits [8]int) {
	t.Helper()
	db.MustExec(
		`INSERT INTO weapons_stats VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		accountID, serverID, weapon, shoots, headshots,
		hits[0], hits[1], hits[2], hits[3], hits[4], hits[5], hits[6], hits[7],
	)
}

func steamID(accountID int) string {
	return fmt.Sprintf("%d", uint64(76561197960265728)+uint64(accountID))
}

func newFireDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db := newSQLite(t, fireSchema...)

	for i := 1; i <= 12; i++ {
		insertFirePlayer(t, db, firePlayer{
			accountID:   i,
			steamID:     steamID(i),
			nickname:    fmt.Sprintf("player%02d", i),
			rank:        (i % 4) + 1,
			points:      1000 + i*10,
			lastconnect: 1700000000,
		})
	}
	return db
}

func newFireDriver(t *testing.T, extraConfig string) Driver {
	t.Helper()
	driver, err := NewFirePlayerStats(extraConfig)
	require.NoError(t, err)
	return driver
}

func TestFirePlayerStatsOptions(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		for _, extraConfig := range []string{"", "{}", "  "} {
			driver := newFireDriver(t, extraConfig).(*firePlayerStats)
			require.Equal(t, firePlayerStatsOptions{Ranks: "default", ServerID: 1}, driver.options)
		}
	})

	t.Run("configured", func(t *testing.T) {
		t.Parallel()

		driver := newFireDriver(t, `{"ranks": "faceit", "server_id": "3", "table_prefix": "fps_"}`).(*firePlayerStats)
		require.Equal(t, firePlayerStatsOptions{Ranks: "faceit", ServerID: 3, TablePrefix: "fps_"}, driver.options)

		driver = newFireDriver(t, `{"server_id": 4}`).(*firePlayerStats)
		require.Equal(t, flexInt(4), driver.options.ServerID)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		_, err := NewFirePlayerStats(`{"server_id": "first"}`)
		require.ErrorIs(t, err, domain.ErrInvalidDriverConfig)

		_, err = NewFirePlayerStats(`not json`)
		require.ErrorIs(t, err, domain.ErrInvalidDriverConfig)
	})
}

func TestFirePlayerStatsDescriptor(t *testing.T) {
	t.Parallel()

	driver := newFireDriver(t, "")
	require.Equal(t, FirePlayerStatsName, driver.Name())
	require.Equal(t, []int{730}, driver.SupportedMods())
	require.Equal(t,
		[]string{"user_url", "avatar", "nickname", "", "rank", "points", "kills", "deaths"},
		driver.Columns().Names(),
	)

	defaultOrder, ok := driver.Columns().DefaultOrder()
	require.True(t, ok)
	require.Equal(t, "rank", defaultOrder.Name)

	keys := []string{}
	for _, block := range driver.Blocks() {
		keys = append(keys, block.Key)
	}
	require.Equal(t, []string{"points", "kills", "deaths", "shoots", "hits", "headshots", "assists", "round_win", "round_lose"}, keys)
}

func TestFirePlayerStatsFetchPage(t *testing.T) {
	t.Parallel()

	t.Run("pages never exceed page size and counts are equal", func(t *testing.T) {
		t.Parallel()

		db := newFireDB(t)
		driver := newFireDriver(t, "")
		env := newTestEnv(t, db, FirePlayerStatsName)

		for _, pageSize := range []int{1, 5, 7, 12, 100} {
			total := 0
			for page := 1; page <= 13; page++ {
				result, err := driver.FetchPage(t.Context(), env.deps, env.binding, pageQuery(driver.Columns(), page, pageSize))
				require.NoError(t, err)

				require.LessOrEqual(t, len(result.Rows), pageSize)
				require.Equal(t, result.TotalCount, result.FilteredCount)
				require.Equal(t, 12, result.FilteredCount)
				require.Equal(t, "3", result.DrawToken)
				total += len(result.Rows)
			}
			require.Equal(t, 12, total)
		}
	})

	t.Run("normalized row layout", func(t *testing.T) {
		t.Parallel()

		db := newSQLite(t, fireSchema...)
		insertFirePlayer(t, db, firePlayer{accountID: 22202, steamID: "76561197960287930", nickname: "gabe", rank: 18, points: 5000, lastconnect: 1})
		insertFirePlayer(t, db, firePlayer{accountID: 2, steamID: "76561197960265730", nickname: "unresolved", rank: 3, points: 100, lastconnect: 1})

		driver := newFireDriver(t, `{"ranks": "premier"}`)
		env := newTestEnv(t, db, FirePlayerStatsName)
		env.resolver.known["76561197960287930"] = domain.ResolvedIdentity{
			CanonicalID: "76561197960287930",
			DisplayName: "Gabe",
			AvatarURL:   "https://avatars.example.com/gabe.jpg",
		}

		result, err := driver.FetchPage(t.Context(), env.deps, env.binding, pageQuery(driver.Columns(), 1, 10))
		require.NoError(t, err)
		require.Len(t, result.Rows, 2)

		// Default order: rank ascending
		require.Equal(t, domain.NormalizedRow{
			"https://example.com/profile/search/76561197960265730",
			"",
			"unresolved",
			"",
			"https://cdn.example.com/assets/ranks/premier/3.webp",
			int64(100),
			int64(10),
			int64(5),
		}, result.Rows[0])
		require.Equal(t, domain.NormalizedRow{
			"https://example.com/profile/search/76561197960287930",
			"https://avatars.example.com/gabe.jpg",
			"gabe",
			"",
			"https://cdn.example.com/assets/ranks/premier/18.webp",
			int64(5000),
			int64(500),
			int64(250),
		}, result.Rows[1])
	})

	t.Run("banned players are excluded", func(t *testing.T) {
		t.Parallel()

		db := newFireDB(t)
		insertFirePlayer(t, db, firePlayer{accountID: 100, steamID: steamID(100), nickname: "player_banned", rank: 1, points: 99999, lastconnect: -1})

		driver := newFireDriver(t, "")
		env := newTestEnv(t, db, FirePlayerStatsName)

		query := pageQuery(driver.Columns(), 1, 100)
		query.GlobalSearch = "banned"
		result, err := driver.FetchPage(t.Context(), env.deps, env.binding, query)
		require.NoError(t, err)
		require.Empty(t, result.Rows)
		require.Equal(t, 0, result.TotalCount)
		require.Equal(t, 0, result.FilteredCount)

		query.GlobalSearch = "player"
		result, err = driver.FetchPage(t.Context(), env.deps, env.binding, query)
		require.NoError(t, err)
		require.Len(t, result.Rows, 12)
		for _, row := range result.Rows {
			require.NotEqual(t, "player_banned", rowValue(t, driver.Columns(), row, "nickname"))
		}
	})

	t.Run("stats of other servers are excluded", func(t *testing.T) {
		t.Parallel()

		db := newFireDB(t)
		insertFirePlayer(t, db, firePlayer{accountID: 1, steamID: steamID(1), nickname: "player01", serverID: 2, rank: 1, points: 50, lastconnect: 1})
		insertFirePlayer(t, db, firePlayer{accountID: 50, steamID: steamID(50), nickname: "only_on_two", serverID: 2, rank: 1, points: 50, lastconnect: 1})

		env := newTestEnv(t, db, FirePlayerStatsName)

		firstServer := newFireDriver(t, "")
		result, err := firstServer.FetchPage(t.Context(), env.deps, env.binding, pageQuery(firstServer.Columns(), 1, 100))
		require.NoError(t, err)
		require.Equal(t, 12, result.FilteredCount)

		secondServer := newFireDriver(t, `{"server_id": 2}`)
		result, err = secondServer.FetchPage(t.Context(), env.deps, env.binding, pageQuery(secondServer.Columns(), 1, 100))
		require.NoError(t, err)
		require.Equal(t, 2, result.FilteredCount)
	})

	t.Run("out of range order index does not change the order", func(t *testing.T) {
		t.Parallel()

		db := newFireDB(t)
		driver := newFireDriver(t, "")
		env := newTestEnv(t, db, FirePlayerStatsName)

		unordered, err := driver.FetchPage(t.Context(), env.deps, env.binding, pageQuery(driver.Columns(), 1, 100))
		require.NoError(t, err)

		query := pageQuery(driver.Columns(), 1, 100)
		query.Order = []domain.OrderSpec{{ColumnIndex: 42, Direction: domain.SortDescending}}
		ordered, err := driver.FetchPage(t.Context(), env.deps, env.binding, query)
		require.NoError(t, err)

		require.Equal(t, unordered.Rows, ordered.Rows)
	})

	t.Run("explicit order", func(t *testing.T) {
		t.Parallel()

		db := newFireDB(t)
		driver := newFireDriver(t, "")
		env := newTestEnv(t, db, FirePlayerStatsName)

		query := pageQuery(driver.Columns(), 1, 3)
		query.Order = []domain.OrderSpec{{ColumnIndex: columnIndex(t, driver.Columns(), "points"), Direction: domain.SortDescending}}
		result, err := driver.FetchPage(t.Context(), env.deps, env.binding, query)
		require.NoError(t, err)

		nicknames := []any{}
		for _, row := range result.Rows {
			nicknames = append(nicknames, rowValue(t, driver.Columns(), row, "nickname"))
		}
		require.Equal(t, []any{"player12", "player11", "player10"}, nicknames)
	})

	t.Run("column search", func(t *testing.T) {
		t.Parallel()

		db := newFireDB(t)
		driver := newFireDriver(t, "")
		env := newTestEnv(t, db, FirePlayerStatsName)

		query := pageQuery(driver.Columns(), 1, 100)
		query.Columns[columnIndex(t, driver.Columns(), "nickname")].SearchValue = "r1"
		result, err := driver.FetchPage(t.Context(), env.deps, env.binding, query)
		require.NoError(t, err)
		require.Equal(t, 3, result.FilteredCount) // player10, player11, player12
	})

	t.Run("identities are resolved once per page without duplicates", func(t *testing.T) {
		t.Parallel()

		db := newSQLite(t, fireSchema...)
		for accountID := 1; accountID <= 4; accountID++ {
			// Two accounts share each steam id
			insertFirePlayer(t, db, firePlayer{accountID: accountID, steamID: steamID(accountID % 2), nickname: "dup", rank: 1, points: 10, lastconnect: 1})
		}

		driver := newFireDriver(t, "")
		env := newTestEnv(t, db, FirePlayerStatsName)

		result, err := driver.FetchPage(t.Context(), env.deps, env.binding, pageQuery(driver.Columns(), 1, 100))
		require.NoError(t, err)
		require.Len(t, result.Rows, 4)

		require.Equal(t, 1, env.resolver.calls)
		require.ElementsMatch(t, []string{steamID(0), steamID(1)}, env.resolver.received[0])
	})

	t.Run("malformed steam ids are skipped from the batch", func(t *testing.T) {
		t.Parallel()

		db := newSQLite(t, fireSchema...)
		insertFirePlayer(t, db, firePlayer{accountID: 1, steamID: "STEAM_0:1:1", nickname: "legacy", rank: 1, points: 10, lastconnect: 1})
		insertFirePlayer(t, db, firePlayer{accountID: 2, steamID: steamID(2), nickname: "modern", rank: 1, points: 10, lastconnect: 1})

		driver := newFireDriver(t, "")
		env := newTestEnv(t, db, FirePlayerStatsName)

		result, err := driver.FetchPage(t.Context(), env.deps, env.binding, pageQuery(driver.Columns(), 1, 100))
		require.NoError(t, err)
		require.Len(t, result.Rows, 2)
		require.Equal(t, [][]string{{steamID(2)}}, env.resolver.received)

		urls := []any{}
		for _, row := range result.Rows {
			urls = append(urls, rowValue(t, driver.Columns(), row, "user_url"))
		}
		require.ElementsMatch(t, []any{
			"https://example.com/profile/search/STEAM_0:1:1",
			"https://example.com/profile/search/" + steamID(2),
		}, urls)
	})

	t.Run("resolver failure leaves rows unenriched", func(t *testing.T) {
		t.Parallel()

		db := newFireDB(t)
		driver := newFireDriver(t, "")
		env := newTestEnv(t, db, FirePlayerStatsName)
		env.resolver.err = domain.ErrTemporarilyUnavailable

		result, err := driver.FetchPage(t.Context(), env.deps, env.binding, pageQuery(driver.Columns(), 1, 5))
		require.NoError(t, err)
		require.Len(t, result.Rows, 5)
		for _, row := range result.Rows {
			require.Equal(t, "", rowValue(t, driver.Columns(), row, "avatar"))
		}
	})

	t.Run("empty result does not call the resolver", func(t *testing.T) {
		t.Parallel()

		db := newSQLite(t, fireSchema...)
		driver := newFireDriver(t, "")
		env := newTestEnv(t, db, FirePlayerStatsName)

		result, err := driver.FetchPage(t.Context(), env.deps, env.binding, pageQuery(driver.Columns(), 1, 10))
		require.NoError(t, err)
		require.Equal(t, domain.PageResult{DrawToken: "3", Rows: []domain.NormalizedRow{}}, result)
		require.Equal(t, 0, env.resolver.calls)
	})

	t.Run("storage errors are returned", func(t *testing.T) {
		t.Parallel()

		// No tables
		db := newSQLite(t)
		driver := newFireDriver(t, "")
		env := newTestEnv(t, db, FirePlayerStatsName)

		_, err := driver.FetchPage(t.Context(), env.deps, env.binding, pageQuery(driver.Columns(), 1, 10))
		require.Error(t, err)
		require.False(t, domain.IsConfigurationError(err))
	})

	t.Run("unconfigured database is a configuration error", func(t *testing.T) {
		t.Parallel()

		driver := newFireDriver(t, "")
		env := newTestEnv(t, nil, FirePlayerStatsName)
		env.databases.err = domain.ErrDatabaseNotConfigured

		_, err := driver.FetchPage(t.Context(), env.deps, env.binding, pageQuery(driver.Columns(), 1, 10))
		require.ErrorIs(t, err, domain.ErrDatabaseNotConfigured)
		require.True(t, domain.IsConfigurationError(err))
	})

	t.Run("table prefix", func(t *testing.T) {
		t.Parallel()

		db := newSQLite(t,
			`CREATE TABLE fps_players (account_id INTEGER PRIMARY KEY, steam_id TEXT NOT NULL, nickname TEXT NOT NULL)`,
			`CREATE TABLE fps_servers_stats (account_id INTEGER, server_id INTEGER, "rank" INTEGER, points INTEGER, kills INTEGER, deaths INTEGER, lastconnect INTEGER)`,
		)
		db.MustExec(`INSERT INTO fps_players VALUES (1, ?, 'prefixed')`, steamID(1))
		db.MustExec(`INSERT INTO fps_servers_stats VALUES (1, 1, 2, 30, 3, 1, 1)`)

		driver := newFireDriver(t, `{"table_prefix": "fps_"}`)
		env := newTestEnv(t, db, FirePlayerStatsName)

		result, err := driver.FetchPage(t.Context(), env.deps, env.binding, pageQuery(driver.Columns(), 1, 10))
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		require.Equal(t, "prefixed", rowValue(t, driver.Columns(), result.Rows[0], "nickname"))
	})
}

func steamUser(steamID string) domain.User {
	return domain.User{
		ID:   5,
		Name: "someone",
		SocialNetworks: []domain.SocialNetwork{
			{Key: "Discord", Value: "1234"},
			{Key: domain.SocialNetworkSteam, Value: steamID},
		},
	}
}

func TestAggregateFireUserStats(t *testing.T) {
	t.Parallel()

	t.Run("no rows", func(t *testing.T) {
		t.Parallel()
		require.Nil(t, aggregateFireUserStats(nil))
	})

	t.Run("scalars from the first row, counters summed", func(t *testing.T) {
		t.Parallel()

		base := fireUserStatsRow{AccountID: 1, Points: 1200, Kills: 300, Deaths: 150, Assists: 40, RoundWin: 60, RoundLose: 55}
		rows := []fireUserStatsRow{base, base, base}
		for i, shoots := range []int64{10, 5, 0} {
			rows[i].Shoots = shoots
		}
		for i, headshots := range []int64{1, 0, 2} {
			rows[i].Headshots = headshots
		}
		rows[0].HitsHead = 1
		rows[0].HitsRightLeg = 2
		rows[1].HitsChest = 3
		rows[2].HitsStomach = 4

		require.Equal(t, map[string]any{
			"points":     int64(1200),
			"kills":      int64(300),
			"deaths":     int64(150),
			"shoots":     int64(15),
			"hits":       int64(10),
			"headshots":  int64(3),
			"assists":    int64(40),
			"round_win":  int64(60),
			"round_lose": int64(55),
		}, aggregateFireUserStats(rows))
	})

	t.Run("other accounts are ignored", func(t *testing.T) {
		t.Parallel()

		rows := []fireUserStatsRow{
			{AccountID: 1, Points: 10, Shoots: 3},
			{AccountID: 2, Points: 20, Shoots: 100},
		}
		metrics := aggregateFireUserStats(rows)
		require.Equal(t, int64(10), metrics["points"])
		require.Equal(t, int64(3), metrics["shoots"])
	})
}

func TestFirePlayerStatsFetchUserStats(t *testing.T) {
	t.Parallel()

	newDB := func(t *testing.T) *sqlx.DB {
		db := newSQLite(t, fireSchema...)
		insertFirePlayer(t, db, firePlayer{accountID: 22202, steamID: "76561197960287930", nickname: "gabe", rank: 1, points: 1200, lastconnect: 1})
		// The fan-out is inserted out of order to check the first row is chosen by weapon name
		insertWeapon(t, db, 22202, 1, "weapon_deagle", 5, 0, [8]int{0, 0, 1, 0, 0, 0, 0, 0})
		insertWeapon(t, db, 22202, 1, "weapon_ak47", 10, 1, [8]int{1, 1, 1, 1, 1, 1, 1, 1})
		insertWeapon(t, db, 22202, 1, "weapon_knife", 0, 2, [8]int{2, 0, 0, 0, 0, 0, 0, 0})
		// Another server
		insertWeapon(t, db, 22202, 2, "weapon_awp", 1000, 1000, [8]int{1000, 0, 0, 0, 0, 0, 0, 0})
		return db
	}

	t.Run("aggregates weapon rows", func(t *testing.T) {
		t.Parallel()

		driver := newFireDriver(t, "")
		env := newTestEnv(t, newDB(t), FirePlayerStatsName)

		summary, err := driver.FetchUserStats(t.Context(), env.deps, 7, steamUser("76561197960287930"))
		require.NoError(t, err)
		require.NotNil(t, summary)

		require.Equal(t, env.binding.Server, summary.Server)
		require.Equal(t, FirePlayerStatsName, summary.DriverName)
		require.Equal(t, driver.Blocks(), summary.Blocks)
		require.Equal(t, map[string]any{
			"points":     int64(1200),
			"kills":      int64(120),
			"deaths":     int64(60),
			"shoots":     int64(15),
			"hits":       int64(11),
			"headshots":  int64(3),
			"assists":    int64(3),
			"round_win":  int64(4),
			"round_lose": int64(5),
		}, summary.Metrics)
	})

	t.Run("linked legacy steam id is converted", func(t *testing.T) {
		t.Parallel()

		driver := newFireDriver(t, "")
		env := newTestEnv(t, newDB(t), FirePlayerStatsName)

		summary, err := driver.FetchUserStats(t.Context(), env.deps, 7, steamUser("STEAM_0:0:11101"))
		require.NoError(t, err)
		require.NotNil(t, summary)
		require.Equal(t, int64(15), summary.Metrics["shoots"])
	})

	t.Run("player without weapon stats", func(t *testing.T) {
		t.Parallel()

		db := newSQLite(t, fireSchema...)
		insertFirePlayer(t, db, firePlayer{accountID: 3, steamID: steamID(3), nickname: "new", rank: 1, points: 100, lastconnect: 1})

		driver := newFireDriver(t, "")
		env := newTestEnv(t, db, FirePlayerStatsName)

		summary, err := driver.FetchUserStats(t.Context(), env.deps, 7, steamUser(steamID(3)))
		require.NoError(t, err)
		require.NotNil(t, summary)
		require.Equal(t, int64(0), summary.Metrics["shoots"])
		require.Equal(t, int64(100), summary.Metrics["points"])
	})

	t.Run("no rows is no info", func(t *testing.T) {
		t.Parallel()

		driver := newFireDriver(t, "")
		env := newTestEnv(t, newDB(t), FirePlayerStatsName)

		summary, err := driver.FetchUserStats(t.Context(), env.deps, 7, steamUser(steamID(999)))
		require.NoError(t, err)
		require.Nil(t, summary)
	})

	t.Run("no linked steam account never reads storage", func(t *testing.T) {
		t.Parallel()

		driver := newFireDriver(t, "")
		env := newTestEnv(t, newDB(t), FirePlayerStatsName)

		user := domain.User{ID: 5, SocialNetworks: []domain.SocialNetwork{{Key: "Discord", Value: "1234"}}}
		summary, err := driver.FetchUserStats(t.Context(), env.deps, 7, user)
		require.NoError(t, err)
		require.Nil(t, summary)
		require.Equal(t, 0, env.databases.calls)
		require.Equal(t, 0, env.bindings.calls)
	})

	t.Run("invalid linked steam id never reads storage", func(t *testing.T) {
		t.Parallel()

		driver := newFireDriver(t, "")
		env := newTestEnv(t, newDB(t), FirePlayerStatsName)

		summary, err := driver.FetchUserStats(t.Context(), env.deps, 7, steamUser("not-a-steam-id"))
		require.NoError(t, err)
		require.Nil(t, summary)
		require.Equal(t, 0, env.databases.calls)
	})

	t.Run("binding errors are masked unless debug", func(t *testing.T) {
		t.Parallel()

		driver := newFireDriver(t, "")
		env := newTestEnv(t, newDB(t), FirePlayerStatsName)
		env.bindings.err = domain.ErrBindingNotFound

		summary, err := driver.FetchUserStats(t.Context(), env.deps, 7, steamUser("76561197960287930"))
		require.NoError(t, err)
		require.Nil(t, summary)
		require.Equal(t, 0, env.databases.calls)

		env.deps.Debug = true
		_, err = driver.FetchUserStats(t.Context(), env.deps, 7, steamUser("76561197960287930"))
		require.ErrorIs(t, err, domain.ErrBindingNotFound)
	})

	t.Run("storage errors are masked unless debug", func(t *testing.T) {
		t.Parallel()

		driver := newFireDriver(t, "")
		env := newTestEnv(t, newSQLite(t), FirePlayerStatsName)

		summary, err := driver.FetchUserStats(t.Context(), env.deps, 7, steamUser("76561197960287930"))
		require.NoError(t, err)
		require.Nil(t, summary)

		env.deps.Debug = true
		_, err = driver.FetchUserStats(t.Context(), env.deps, 7, steamUser("76561197960287930"))
		require.Error(t, err)

		env.databases.err = errStorage
		_, err = driver.FetchUserStats(t.Context(), env.deps, 7, steamUser("76561197960287930"))
		require.ErrorIs(t, err, errStorage)
	})
}

func TestFirePlayerStatsNullCells(t *testing.T) {
	t.Parallel()

	nullableSchema := []string{
		`CREATE TABLE players (account_id INTEGER PRIMARY KEY, steam_id TEXT, nickname TEXT)`,
		`CREATE TABLE servers_stats (
			account_id INTEGER, server_id INTEGER, "rank" INTEGER, points INTEGER, kills INTEGER, deaths INTEGER,
			assists INTEGER, round_win INTEGER, round_lose INTEGER, lastconnect INTEGER
		)`,
		`CREATE TABLE weapons_stats (
			account_id INTEGER, server_id INTEGER, weapon TEXT, shoots INTEGER, headshots INTEGER,
			hits_head INTEGER, hits_neck INTEGER, hits_chest INTEGER, hits_stomach INTEGER,
			hits_left_arm INTEGER, hits_right_arm INTEGER, hits_left_leg INTEGER, hits_right_leg INTEGER
		)`,
	}

	newDB := func(t *testing.T) *sqlx.DB {
		db := newSQLite(t, nullableSchema...)
		for i := 1; i <= 3; i++ {
			db.MustExec(`INSERT INTO players VALUES (?, ?, ?)`, i, steamID(i), fmt.Sprintf("player%d", i))
			db.MustExec(`INSERT INTO servers_stats VALUES (?, 1, ?, ?, 10, 5, 1, 2, 3, 1)`, i, i, i*100)
		}
		db.MustExec(`UPDATE players SET nickname = NULL WHERE account_id = 2`)
		db.MustExec(`UPDATE servers_stats SET "rank" = NULL, kills = NULL WHERE account_id = 3`)
		db.MustExec(`INSERT INTO players VALUES (4, NULL, 'no steam id')`)
		db.MustExec(`INSERT INTO servers_stats VALUES (4, 1, 4, 400, 10, 5, 1, 2, NULL, 1)`)
		return db
	}

	t.Run("page keeps rows with NULL cells", func(t *testing.T) {
		t.Parallel()

		driver := newFireDriver(t, "")
		env := newTestEnv(t, newDB(t), FirePlayerStatsName)

		query := pageQuery(driver.Columns(), 1, 10)
		query.Order = []domain.OrderSpec{{ColumnIndex: columnIndex(t, driver.Columns(), "points"), Direction: domain.SortAscending}}
		result, err := driver.FetchPage(t.Context(), env.deps, env.binding, query)
		require.NoError(t, err)
		require.Equal(t, 4, result.FilteredCount)
		require.Len(t, result.Rows, 4)

		columns := driver.Columns()
		require.Equal(t, "player1", rowValue(t, columns, result.Rows[0], "nickname"))
		require.Equal(t, "", rowValue(t, columns, result.Rows[1], "nickname"))
		require.Equal(t, int64(200), rowValue(t, columns, result.Rows[1], "points"))

		require.Equal(t, "", rowValue(t, columns, result.Rows[2], "rank"))
		require.Equal(t, int64(0), rowValue(t, columns, result.Rows[2], "kills"))

		require.Equal(t, "https://example.com/profile/search/", rowValue(t, columns, result.Rows[3], "user_url"))
		require.Equal(t, [][]string{{steamID(1), steamID(2), steamID(3)}}, env.resolver.received)
	})

	t.Run("user stats default NULL scalars", func(t *testing.T) {
		t.Parallel()

		driver := newFireDriver(t, "")
		env := newTestEnv(t, newDB(t), FirePlayerStatsName)

		summary, err := driver.FetchUserStats(t.Context(), env.deps, 7, steamUser(steamID(3)))
		require.NoError(t, err)
		require.NotNil(t, summary)
		require.Equal(t, int64(0), summary.Metrics["kills"])
		require.Equal(t, int64(300), summary.Metrics["points"])
	})
}

func TestFirePlayerStatsUserLookupIsExact(t *testing.T) {
	t.Parallel()

	db := newSQLite(t, fireSchema...)
	// Same trailing digits as the looked up id
	insertFirePlayer(t, db, firePlayer{accountID: 1, steamID: "1" + steamID(3), nickname: "longer", rank: 1, points: 999, lastconnect: 1})
	insertFirePlayer(t, db, firePlayer{accountID: 3, steamID: steamID(3), nickname: "exact", rank: 1, points: 100, lastconnect: 1})

	driver := newFireDriver(t, "")
	env := newTestEnv(t, db, FirePlayerStatsName)

	summary, err := driver.FetchUserStats(t.Context(), env.deps, 7, steamUser(steamID(3)))
	require.NoError(t, err)
	require.NotNil(t, summary)
	require.Equal(t, int64(100), summary.Metrics["points"])

	db.MustExec(`DELETE FROM players WHERE account_id = 3`)
	summary, err = driver.FetchUserStats(t.Context(), env.deps, 7, steamUser(steamID(3)))
	require.NoError(t, err)
	require.Nil(t, summary)
}
